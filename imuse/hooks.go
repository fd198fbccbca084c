package imuse

// Hook classes accepted by setHook
const (
	HookJump          = 0
	HookTranspose     = 1
	HookPartOnOff     = 2
	HookPartVolume    = 3
	HookPartProgram   = 4
	HookPartTranspose = 5
)

// allChannels addresses every part hook at once
const allChannels = 16

// HookDatas holds the values conditional hook events in the music data
// are compared against. A hook fires when its stored value matches the
// value embedded in the event, or when the event carries 0.
type HookDatas struct {
	Jump          [2]uint8  `json:"jump"`
	Transpose     uint8     `json:"transpose"`
	PartOnOff     [16]uint8 `json:"partOnOff"`
	PartVolume    [16]uint8 `json:"partVolume"`
	PartProgram   [16]uint8 `json:"partProgram"`
	PartTranspose [16]uint8 `json:"partTranspose"`
}

func (h *HookDatas) reset() {
	*h = HookDatas{}
}

func (h *HookDatas) set(cls int, value uint8, ch int) int {
	if cls >= HookPartOnOff && cls <= HookPartTranspose {
		if ch == allChannels {
			table := h.partTable(cls)
			for i := range table {
				table[i] = value
			}
			return 0
		}
		if ch < 0 || ch > 15 {
			return -1
		}
		h.partTable(cls)[ch] = value
		return 0
	}

	switch cls {
	case HookJump:
		if value != h.Jump[0] {
			h.Jump[1] = h.Jump[0]
		}
		h.Jump[0] = value
	case HookTranspose:
		h.Transpose = value
	default:
		return -1
	}
	return 0
}

func (h *HookDatas) partTable(cls int) *[16]uint8 {
	switch cls {
	case HookPartOnOff:
		return &h.PartOnOff
	case HookPartVolume:
		return &h.PartVolume
	case HookPartProgram:
		return &h.PartProgram
	default:
		return &h.PartTranspose
	}
}

// queryParam answers player parameters 18-23
func (h *HookDatas) queryParam(param int, ch uint8) int {
	c := ch & 0x0F
	switch param {
	case 18:
		return int(h.Jump[0])
	case 19:
		return int(h.Transpose)
	case 20:
		return int(h.PartOnOff[c])
	case 21:
		return int(h.PartVolume[c])
	case 22:
		return int(h.PartProgram[c])
	case 23:
		return int(h.PartTranspose[c])
	}
	return -1
}

// consume checks an event value against a stored hook. One-shot values
// (below 0x80) are cleared when they fire.
func consume(stored *uint8, cmd uint8) bool {
	if cmd != 0 {
		if *stored != cmd {
			return false
		}
		if cmd < 0x80 {
			*stored = 0
		}
	}
	return true
}

func (p *Player) maybeJump(cmd uint8, track, beat, tick int) {
	if cmd != 0 {
		if p.hook.Jump[0] != cmd {
			return
		}
		if cmd < 0x80 {
			p.hook.Jump[0] = p.hook.Jump[1]
			p.hook.Jump[1] = 0
		}
	}
	p.jump(track, beat, tick)
}

func (p *Player) maybeSetTranspose(data []byte) {
	if !consume(&p.hook.Transpose, byteAt(data, 0)) {
		return
	}
	p.setTranspose(int(byteAt(data, 1)), int(int8(byteAt(data, 2))))
}

func (p *Player) maybePartOnOff(ch uint8, data []byte) {
	c := ch & 0x0F
	if !consume(&p.hook.PartOnOff[c], byteAt(data, 0)) {
		return
	}
	if part := p.getActivePart(c); part != nil {
		part.setOnOff(byteAt(data, 1) != 0)
	}
}

func (p *Player) maybeSetVolume(ch uint8, data []byte) {
	c := ch & 0x0F
	if !consume(&p.hook.PartVolume[c], byteAt(data, 0)) {
		return
	}
	if part := p.getActivePart(c); part != nil {
		part.setVolume(byteAt(data, 1) & 0x7F)
	}
}

func (p *Player) maybeSetProgram(ch uint8, data []byte) {
	c := ch & 0x0F
	if !consume(&p.hook.PartProgram[c], byteAt(data, 0)) {
		return
	}
	if part := p.getPart(c); part != nil {
		part.programChange(byteAt(data, 1))
	}
}

func (p *Player) maybeSetTransposePart(ch uint8, data []byte) {
	c := ch & 0x0F
	if !consume(&p.hook.PartTranspose[c], byteAt(data, 0)) {
		return
	}
	p.partSetTranspose(c, byteAt(data, 1) != 0, int(int8(byteAt(data, 2))))
}

func (p *Player) partSetTranspose(ch uint8, relative bool, b int) {
	if b > 24 || b < -24 {
		return
	}
	part := p.getActivePart(ch)
	if part == nil {
		return
	}
	if relative {
		b = transposeClamp(b+int(part.transpose), -7, 7)
	}
	part.setTranspose(int8(b), -transposeLimit, transposeLimit)
}

func byteAt(b []byte, i int) uint8 {
	if i < len(b) {
		return b[i]
	}
	return 0
}
