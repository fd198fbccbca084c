package midi

// TicksPerBeat is the resolution every parsed stream is normalised to
const TicksPerBeat = 480

// DefaultTempo is the tempo a stream starts at before any tempo event (120 bpm)
const DefaultTempo = 500000

// EventKind identifies what an Event carries
type EventKind uint8

const (
	KindChannel EventKind = iota // channel voice message in Data
	KindSysEx                    // sysex payload in Data, without F0/F7
	KindTempo                    // Tempo holds microseconds per beat
	KindMarker                   // Text holds the marker text
	KindEnd                      // end of track
)

// Event is one timed message of a parsed sound
type Event struct {
	Tick  uint32
	Kind  EventKind
	Data  []byte
	Tempo uint32
	Text  string
}

// Stream is a parsed sound: one or more tracks of tick-ordered events
type Stream struct {
	Tracks [][]Event
}

// Track returns the events of track i, or nil if there is no such track
func (s *Stream) Track(i int) []Event {
	if s == nil || i < 0 || i >= len(s.Tracks) {
		return nil
	}
	return s.Tracks[i]
}

// EndTick returns the tick of the last event in track i
func (s *Stream) EndTick(i int) uint32 {
	events := s.Track(i)
	if len(events) == 0 {
		return 0
	}
	return events[len(events)-1].Tick
}

// Parser turns the bytes of one sound chunk into a Stream
type Parser interface {
	Parse(data []byte) (*Stream, error)
}

// ParserFunc adapts a function to the Parser interface
type ParserFunc func(data []byte) (*Stream, error)

func (f ParserFunc) Parse(data []byte) (*Stream, error) {
	return f(data)
}
