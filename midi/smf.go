package midi

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// SMF is the Standard MIDI File parser
var SMF Parser = ParserFunc(ParseSMF)

// ParseSMF parses a Standard MIDI File (starting at its MThd chunk) into a
// Stream. Tick positions are rescaled to TicksPerBeat.
func ParseSMF(data []byte) (*Stream, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SMF: %w", err)
	}

	resolution := uint64(TicksPerBeat)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok && mt.Resolution() > 0 {
		resolution = uint64(mt.Resolution())
	}

	if len(s.Tracks) == 0 {
		return nil, errors.New("SMF has no tracks")
	}

	stream := &Stream{Tracks: make([][]Event, 0, len(s.Tracks))}
	for _, track := range s.Tracks {
		var abs uint64
		events := make([]Event, 0, len(track))
		for _, ev := range track {
			abs += uint64(ev.Delta)
			tick := uint32(abs * TicksPerBeat / resolution)
			if e, ok := convertMessage(tick, ev.Message); ok {
				events = append(events, e)
			}
		}
		stream.Tracks = append(stream.Tracks, events)
	}

	// format 1 tracks play together; format 0 and 2 tracks are sequences
	// of their own
	if smfFormat(data) == 1 && len(stream.Tracks) > 1 {
		stream.Tracks = [][]Event{mergeTracks(stream.Tracks)}
	}
	return stream, nil
}

func smfFormat(data []byte) int {
	if len(data) < 10 {
		return 0
	}
	return int(data[8])<<8 | int(data[9])
}

// mergeTracks interleaves tracks by tick, keeping a single end of track
func mergeTracks(tracks [][]Event) []Event {
	var merged []Event
	var end uint32
	for _, t := range tracks {
		for _, ev := range t {
			if ev.Kind == KindEnd {
				end = max(end, ev.Tick)
				continue
			}
			merged = append(merged, ev)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Tick < merged[j].Tick
	})
	if n := len(merged); n > 0 {
		end = max(end, merged[n-1].Tick)
	}
	return append(merged, Event{Tick: end, Kind: KindEnd})
}

// convertMessage classifies one raw SMF message
func convertMessage(tick uint32, msg []byte) (Event, bool) {
	if len(msg) == 0 {
		return Event{}, false
	}

	switch {
	case msg[0] == 0xFF:
		return convertMeta(tick, msg)

	case msg[0] == 0xF0:
		payload := msg[1:]
		if n := len(payload); n > 0 && payload[n-1] == 0xF7 {
			payload = payload[:n-1]
		}
		return Event{Tick: tick, Kind: KindSysEx, Data: append([]byte(nil), payload...)}, true

	case msg[0] >= 0x80 && msg[0] < 0xF0:
		return Event{Tick: tick, Kind: KindChannel, Data: append([]byte(nil), msg...)}, true
	}
	return Event{}, false
}

// convertMeta handles FF <type> <len> <data>
func convertMeta(tick uint32, msg []byte) (Event, bool) {
	if len(msg) < 3 {
		return Event{}, false
	}
	typ := msg[1]
	length, n := readVarLen(msg[2:])
	data := msg[2+n:]
	if uint64(len(data)) > length {
		data = data[:length]
	}

	switch typ {
	case 0x51: // tempo
		if len(data) < 3 {
			return Event{}, false
		}
		us := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
		if us == 0 {
			return Event{}, false
		}
		return Event{Tick: tick, Kind: KindTempo, Tempo: us}, true
	case 0x06: // marker
		return Event{Tick: tick, Kind: KindMarker, Text: string(data)}, true
	case 0x2F: // end of track
		return Event{Tick: tick, Kind: KindEnd}, true
	}
	return Event{}, false
}

// readVarLen decodes a variable length quantity, returning the value and
// the number of bytes consumed
func readVarLen(b []byte) (uint64, int) {
	var v uint64
	for i := 0; i < len(b) && i < 4; i++ {
		v = v<<7 | uint64(b[i]&0x7F)
		if b[i]&0x80 == 0 {
			return v, i + 1
		}
	}
	return v, min(len(b), 4)
}
