package midi

// CueKind is what a control surface did
type CueKind int

const (
	CueNoteOn CueKind = iota
	CueNoteOff
	CueControl
)

func (k CueKind) String() string {
	switch k {
	case CueNoteOn:
		return "note-on"
	case CueNoteOff:
		return "note-off"
	case CueControl:
		return "control"
	}
	return "unknown"
}

// Cue is one event from a keyboard or pad controller used to drive the
// engine by hand
type Cue struct {
	Kind    CueKind
	Channel uint8
	Note    uint8 // key, or controller number for CueControl
	Value   uint8 // velocity, or controller value
}
