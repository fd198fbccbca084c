package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// level meters
	MeterFull  rune // █
	MeterEmpty rune // ░

	// player slots
	Playing rune // ▶
	Paused  rune // ‖
	Free    rune // ·

	// channel map
	Held      rune // ● channel held by a part
	Available rune // ○ free channel
	Suspended rune // ◌ part waiting for a channel
	Rhythm    rune // ◆ percussion part
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			MeterFull:  '█',
			MeterEmpty: '░',

			Playing: '▶',
			Paused:  '‖',
			Free:    '·',

			Held:      '●',
			Available: '○',
			Suspended: '◌',
			Rhythm:    '◆',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleCursor  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Level colors a meter value in 0-limit along the palette, skipping the
// darkest stretch so low levels stay readable
func (t *Theme) Level(value, limit int) lipgloss.Color {
	if limit <= 0 || value <= 0 {
		return t.Muted()
	}
	if value >= limit {
		return t.Success()
	}
	norm := float64(value) / float64(limit)
	return t.Color(RoleMuted + norm*(1-RoleMuted))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
