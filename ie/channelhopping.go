package ie

import "fmt"

// ChannelHoppingIE carries the hopping template ID alone, per the default
// behavior described in the design (sub-ID 0x09, long form).
type ChannelHoppingIE struct {
	TemplateID uint8
}

// Encode serializes the IE using the long sub-IE form, as specified.
func (c ChannelHoppingIE) Encode() []byte {
	return EncodeSubIE(SubChannelHopping, []byte{c.TemplateID}, true)
}

// DecodeChannelHoppingIE parses the IE from the front of buf.
func DecodeChannelHoppingIE(buf []byte) (ChannelHoppingIE, int, error) {
	subID, content, n, err := DecodeSubIE(buf)
	if err != nil {
		return ChannelHoppingIE{}, 0, err
	}
	if subID != SubChannelHopping {
		return ChannelHoppingIE{}, 0, fmt.Errorf("ie: expected channel-hopping sub-IE %#x got %#x", SubChannelHopping, subID)
	}
	if len(content) != 1 {
		return ChannelHoppingIE{}, 0, fmt.Errorf("ie: channel-hopping IE must carry 1 byte, got %d", len(content))
	}
	return ChannelHoppingIE{TemplateID: content[0]}, n, nil
}
