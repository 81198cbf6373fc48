package ie

import "fmt"

// EncodeMLMEPayload wraps a sequence of already-encoded sub-IEs in one MLME
// payload IE (group 0x01), the container an Enhanced Beacon uses to carry
// Sync / Slotframe-and-Link / Timeslot / Channel-Hopping sub-IEs.
func EncodeMLMEPayload(subIEs ...[]byte) []byte {
	var content []byte
	for _, s := range subIEs {
		content = append(content, s...)
	}
	return EncodePayloadIE(GroupMLME, content)
}

// DecodeMLMEPayload parses one MLME payload IE from the front of buf and
// returns its raw sub-IE content for iteration with IterateSubIEs.
func DecodeMLMEPayload(buf []byte) (content []byte, consumed int, err error) {
	groupID, content, n, err := DecodePayloadIE(buf)
	if err != nil {
		return nil, 0, err
	}
	if groupID != GroupMLME {
		return nil, 0, fmt.Errorf("ie: expected MLME payload IE group %#x got %#x", GroupMLME, groupID)
	}
	return content, n, nil
}
