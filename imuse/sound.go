package imuse

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-imuse/debug"
	"go-imuse/midi"
)

// SoundBank resolves sound ids to resource bytes. Lookups happen under
// the engine lock and must not block.
type SoundBank interface {
	Sound(id int) ([]byte, bool)
}

// MapBank is an in-memory SoundBank
type MapBank map[int][]byte

func (b MapBank) Sound(id int) ([]byte, bool) {
	data, ok := b[id]
	return data, ok
}

// IDs returns the sound ids in ascending order
func (b MapBank) IDs() []int {
	ids := make([]int, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// LoadDir reads every file named <id>.<ext> in dir into a MapBank
func LoadDir(dir string) (MapBank, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("failed to read sound directory"))
	}

	bank := MapBank{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		id, err := strconv.Atoi(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("failed to read sound "+name))
		}
		bank[id] = data
	}
	debug.Log("sound", "loaded %d sounds from %s", len(bank), dir)
	return bank, nil
}

// ChunkType selects the resource chunks findChunk looks for
type ChunkType uint8

const (
	ChunkMThd ChunkType = 1 << iota // Standard MIDI File
	ChunkFORM                       // XMIDI container
	ChunkMDhd                       // start parameters
	ChunkMDpg
)

var chunkTags = [...]struct {
	kind ChunkType
	tag  string
}{
	{ChunkMThd, "MThd"},
	{ChunkFORM, "FORM"},
	{ChunkMDhd, "MDhd"},
	{ChunkMDpg, "MDpg"},
}

// chunkSearchLen is how far past the resource header a chunk may start
const chunkSearchLen = 48

// findChunk returns the offset of the first chunk of one of the masked
// types, or -1. Resources carry an 8 byte header; bare MIDI files are
// accepted as they are.
func findChunk(data []byte, mask ChunkType) int {
	if len(data) >= 4 && string(data[:4]) == "MThd" {
		if mask&ChunkMThd != 0 {
			return 0
		}
		return -1
	}

	for pos := 8; pos < 8+chunkSearchLen && pos+4 <= len(data); pos++ {
		for _, c := range chunkTags {
			if mask&c.kind != 0 && string(data[pos:pos+4]) == c.tag {
				return pos
			}
		}
	}
	return -1
}

// startParameters returns the 8 byte MDhd payload, or nil
func startParameters(data []byte) []byte {
	off := findChunk(data, ChunkMDhd)
	if off < 0 || off+8 > len(data) {
		return nil
	}
	size := int(data[off+4])<<24 | int(data[off+5])<<16 | int(data[off+6])<<8 | int(data[off+7])
	hdr := data[off+8:]
	if size == 0 || len(hdr) < 8 {
		return nil
	}
	return hdr[:8]
}

// classifySound reads the resource tag: whether the sound is MIDI data,
// whether it uses MT-32 programs, and whether it has a rhythm channel
func classifySound(data []byte) (isMIDI, isMT32, percussion bool) {
	if len(data) >= 4 {
		switch string(data[:4]) {
		case "ADL ", "ASFX", "SPK ":
			return false, false, false
		case "AMI ":
			return true, true, false
		case "ROL ":
			return true, true, true
		case "MAC ", "GMD ", "MIDI", "MThd":
			return true, false, true
		}
	}
	if len(data) >= 2 && data[0] == 'R' && data[1] == 'O' {
		return true, true, true
	}
	if len(data) >= 6 && data[4] == 'S' && data[5] == 'O' {
		return false, false, false
	}
	debug.Log("sound", "unknown resource tag %q, assuming GM", string(data[:min(len(data), 4)]))
	return true, false, true
}

// parseSound locates the event data in a resource and parses it with
// the parser registered for its chunk type
func (e *Engine) parseSound(data []byte) (*midi.Stream, error) {
	off := findChunk(data, ChunkMThd|ChunkFORM)
	if off < 0 {
		return nil, fault.Wrap(ErrUnsupportedFormat, fmsg.With("no MThd or FORM chunk"))
	}

	kind := ChunkMThd
	if string(data[off:off+4]) == "FORM" {
		kind = ChunkFORM
	}
	parser, ok := e.parsers[kind]
	if !ok {
		return nil, fault.Wrap(ErrUnsupportedFormat, fmsg.With("no parser for "+string(data[off:off+4])))
	}

	stream, err := parser.Parse(data[off:])
	if err != nil {
		return nil, fault.Wrap(err, ftag.With(ftag.InvalidArgument), fmsg.With("failed to parse sound"))
	}
	if len(stream.Tracks) == 0 {
		return nil, fault.Wrap(ErrUnsupportedFormat, fmsg.With("sound has no tracks"))
	}
	return stream, nil
}
