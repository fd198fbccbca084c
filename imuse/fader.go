package imuse

// Parameter fader kinds
const (
	FaderVolume    = 1
	FaderTranspose = 3
	FaderSpeed     = 4
	FaderClearAll  = 127
)

const maxFaders = 4

// ParameterFader ramps one player parameter to a target over a number of
// timer ticks. Each tick adds the integer step and carries the remainder
// so the final value lands exactly on the target.
type ParameterFader struct {
	Param     int `json:"param"` // 0 when the slot is free
	Start     int `json:"start"`
	Target    int `json:"target"`
	State     int `json:"state"`
	Incr      int `json:"incr"`
	IFrac     int `json:"ifrac"`
	IRem      int `json:"irem"`
	Dir       int `json:"dir"`
	TTime     int `json:"ttime"`
	Countdown int `json:"countdown"`
}

func (f *ParameterFader) init(param, start, target, ticks int) {
	diff := target - start
	*f = ParameterFader{
		Param:     param,
		Start:     start,
		Target:    target,
		State:     start,
		Incr:      diff / ticks,
		TTime:     ticks,
		Countdown: ticks,
		Dir:       1,
	}
	if diff < 0 {
		f.Dir = -1
		diff = -diff
	}
	f.IFrac = diff % ticks
}

// step advances one tick and returns the new value
func (f *ParameterFader) step() (int, bool) {
	f.State += f.Incr
	f.IRem += f.IFrac
	if f.IRem >= f.TTime {
		f.IRem -= f.TTime
		f.State += f.Dir
	}
	f.Countdown--
	if f.Countdown <= 0 {
		f.State = f.Target
		return f.State, true
	}
	return f.State, false
}

// addParameterFader starts a fade of param to target over ticks timer
// ticks. A zero duration sets the value at once.
func (p *Player) addParameterFader(param, target, ticks int) int {
	var start int
	switch param {
	case FaderVolume:
		if ticks <= 0 {
			return p.setVolume(target)
		}
		start = int(p.volume)
	case FaderTranspose:
		target = clamp(target, -24, 24)
		if ticks <= 0 {
			return p.setTranspose(0, target)
		}
		start = int(p.transpose)
	case FaderSpeed:
		target = clamp(target, 0, 255)
		if ticks <= 0 {
			p.setSpeed(uint8(target))
			return 0
		}
		start = int(p.speed)
	case FaderClearAll:
		for i := range p.faders {
			p.faders[i].Param = 0
		}
		return 0
	default:
		return -1
	}

	best := -1
	for i := range p.faders {
		if p.faders[i].Param == param {
			best = i
			break
		}
		if p.faders[i].Param == 0 {
			best = i
		}
	}
	if best < 0 {
		return -1
	}
	p.faders[best].init(param, start, target, ticks)
	return 0
}

// transitionParameters advances every running fader by one tick
func (p *Player) transitionParameters() {
	for i := range p.faders {
		f := &p.faders[i]
		if f.Param == 0 {
			continue
		}
		v, done := f.step()
		switch f.Param {
		case FaderVolume:
			p.setVolume(clamp(v, 0, 127))
			if done && f.Target == 0 {
				p.clear()
				return
			}
		case FaderTranspose:
			p.setTranspose(0, clamp(v, -24, 24))
		case FaderSpeed:
			p.setSpeed(uint8(clamp(v, 0, 255)))
		}
		if done {
			f.Param = 0
		}
	}
}

func (p *Player) isFadingOut() bool {
	for _, f := range p.faders {
		if f.Param == FaderVolume && f.Target == 0 {
			return true
		}
	}
	return false
}
