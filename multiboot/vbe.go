package multiboot

import "math"

// Mode types of the header's ModeType field.
const (
	ModeLinearGraphics uint32 = 0
	ModeText           uint32 = 1
)

// VBE mode attribute bits.
const (
	VBEModeSupported uint16 = 0x01
	VBEModeGraphics  uint16 = 0x10
	VBEModeLinear    uint16 = 0x80

	// VBELinearFrameBuffer is or'ed into a mode number to request a linear frame buffer.
	VBELinearFrameBuffer uint16 = 0x4000
)

// VBEMode is the part of a VBE mode information block needed to pick a mode.
type VBEMode struct {
	Number       uint16
	Attributes   uint16
	Width        uint16
	Height       uint16
	BitsPerPixel uint8
}

func (m VBEMode) matches(modeType uint32) bool {
	if m.Attributes&VBEModeSupported == 0 {
		return false
	}
	text := m.Attributes&VBEModeGraphics == 0
	if text != (modeType == ModeText) {
		return false
	}
	return text || m.Attributes&VBEModeLinear != 0
}

// BestMode returns the mode whose memory footprint is closest to the one
// requested by h. Graphics modes need a linear frame buffer.
// The bool is false if no mode matches the requested type.
func BestMode(modes []VBEMode, h Header) (VBEMode, bool) {
	desired := uint64(h.Width) * uint64(h.Height) * uint64(h.Depth)
	best := uint64(math.MaxUint64)
	var found VBEMode
	ok := false

	for _, m := range modes {
		if !m.matches(h.ModeType) {
			continue
		}
		mem := uint64(m.Width) * uint64(m.Height) * uint64(m.BitsPerPixel)
		diff := desired - mem
		if mem > desired {
			diff = mem - desired
		}
		if diff < best {
			best = diff
			found = m
			ok = true
		}
	}
	return found, ok
}
