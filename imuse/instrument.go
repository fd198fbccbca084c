package imuse

import (
	"go-imuse/debug"
	"go-imuse/midi"
)

// InstrumentKind says how an Instrument is realised on the output
type InstrumentKind uint8

const (
	InstrumentNone    InstrumentKind = iota
	InstrumentProgram                // a program number, GM or MT-32 numbering
	InstrumentRoland                 // an MT-32 timbre definition (sysex)
	InstrumentCustom                 // a synth patch the MIDI output cannot render
)

// Instrument is the sound a Part plays with
type Instrument struct {
	Kind    InstrumentKind `json:"kind"`
	Program uint8          `json:"program,omitempty"`
	MT32    bool           `json:"mt32,omitempty"` // Program uses MT-32 numbering
	Data    []byte         `json:"data,omitempty"`
}

func programInstrument(program uint8, mt32 bool) Instrument {
	return Instrument{Kind: InstrumentProgram, Program: program & 0x7F, MT32: mt32}
}

func (i Instrument) Valid() bool {
	return i.Kind != InstrumentNone
}

// send selects the instrument on ch. MT-32 numbered programs are mapped
// to their closest GM program unless the output is a real MT-32.
func (i Instrument) send(drv midi.Driver, ch midi.Channel, nativeMT32 bool) {
	switch i.Kind {
	case InstrumentProgram:
		program := i.Program
		if i.MT32 && !nativeMT32 {
			program = mt32ToGM[program&0x7F]
		}
		ch.ProgramChange(program)

	case InstrumentRoland:
		if !nativeMT32 {
			debug.Log("instrument", "roland timbre on ch %d ignored on GM output", ch.Number())
			return
		}
		midi.SendSysEx(drv, i.Data)

	case InstrumentCustom:
		debug.Log("instrument", "custom patch (%d bytes) on ch %d not renderable", len(i.Data), ch.Number())
	}
}

// mt32ToGM maps MT-32 program numbers to General MIDI
var mt32ToGM = [128]uint8{
	0, 1, 0, 2, 4, 4, 5, 3, 16, 17, 18, 16, 16, 19, 20, 21,
	6, 6, 6, 7, 7, 7, 8, 112, 62, 62, 63, 63, 38, 38, 39, 39,
	88, 95, 52, 98, 97, 99, 14, 54, 102, 96, 53, 102, 81, 100, 14, 80,
	48, 48, 44, 45, 40, 40, 42, 42, 43, 46, 45, 24, 25, 28, 27, 104,
	32, 32, 34, 33, 36, 37, 35, 35, 79, 73, 72, 72, 74, 75, 64, 65,
	66, 67, 71, 71, 68, 69, 70, 22, 56, 59, 57, 57, 60, 60, 58, 61,
	61, 11, 11, 98, 14, 9, 14, 13, 12, 107, 107, 77, 78, 78, 76, 76,
	47, 117, 127, 118, 118, 116, 115, 119, 115, 112, 55, 124, 123, 0, 14, 117,
}
