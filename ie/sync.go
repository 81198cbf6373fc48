package ie

import (
	"fmt"

	"github.com/tve/tsch6/asn"
)

// SyncIE carries the sender's ASN and join priority (sub-ID 0x1A).
type SyncIE struct {
	ASN          asn.ASN
	JoinPriority uint8
}

// Encode returns the full sub-IE (descriptor + content), short form: the
// content is always 6 bytes (5-byte ASN + 1-byte join priority).
func (s SyncIE) Encode() []byte {
	b := s.ASN.Bytes()
	content := []byte{b[0], b[1], b[2], b[3], b[4], s.JoinPriority}
	return EncodeSubIE(SubSyncIE, content, false)
}

// DecodeSyncIE parses a Sync sub-IE from the front of buf.
func DecodeSyncIE(buf []byte) (SyncIE, int, error) {
	subID, content, n, err := DecodeSubIE(buf)
	if err != nil {
		return SyncIE{}, 0, err
	}
	if subID != SubSyncIE {
		return SyncIE{}, 0, fmt.Errorf("ie: expected sync sub-IE %#x got %#x", SubSyncIE, subID)
	}
	if len(content) != 6 {
		return SyncIE{}, 0, fmt.Errorf("ie: sync IE content must be 6 bytes, got %d", len(content))
	}
	var b [5]byte
	copy(b[:], content[:5])
	return SyncIE{ASN: asn.FromBytes(b), JoinPriority: content[5]}, n, nil
}
