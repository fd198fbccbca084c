package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-imuse/imuse"
	"go-imuse/theme"
)

// RenderMeter renders value in 0-limit as a bar width cells wide
func RenderMeter(th *theme.Theme, value, limit, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if limit > 0 {
		filled = min(max(value, 0)*width/limit, width)
	}
	full := lipgloss.NewStyle().Foreground(th.Level(value, limit))
	empty := lipgloss.NewStyle().Foreground(th.Muted())
	return full.Render(strings.Repeat(string(th.Symbols.MeterFull), filled)) +
		empty.Render(strings.Repeat(string(th.Symbols.MeterEmpty), width-filled))
}

// RenderChannelMap renders one cell per output channel, colored by the
// priority of the part holding it
func RenderChannelMap(th *theme.Theme, channels []imuse.ChannelUse) string {
	var out strings.Builder
	for i, c := range channels {
		if i > 0 {
			out.WriteString(" ")
		}
		if c.Part < 0 {
			out.WriteString(lipgloss.NewStyle().Foreground(th.Muted()).Render(string(th.Symbols.Available)))
			continue
		}
		out.WriteString(lipgloss.NewStyle().Foreground(th.Level(c.Priority, 255)).Render(string(th.Symbols.Held)))
	}
	return out.String()
}

// RenderPlayer renders one player slot line
func RenderPlayer(th *theme.Theme, p imuse.PlayerStatus) string {
	dim := lipgloss.NewStyle().Foreground(th.Muted())
	if p.Mode == "free" {
		return dim.Render(fmt.Sprintf("%d %c", p.Slot+1, th.Symbols.Free))
	}

	sym := th.Symbols.Playing
	if p.Mode == "paused" {
		sym = th.Symbols.Paused
	}
	head := lipgloss.NewStyle().Foreground(th.Accent()).Render(fmt.Sprintf("%d %c %-5d", p.Slot+1, sym, p.Sound))
	pos := fmt.Sprintf("%3d.%03d", p.Beat, p.Tick)
	if p.LoopCounter != 0 {
		pos += fmt.Sprintf(" loop:%d", p.LoopCounter)
	}
	if p.FadingOut {
		pos += " fade"
	}
	return fmt.Sprintf("%s %s pri:%-3d %s %s", head, RenderMeter(th, p.VolEff, 127, 12), p.Priority, pos, RenderParts(th, p.Parts))
}

// RenderParts renders one symbol per part: held, suspended or rhythm
func RenderParts(th *theme.Theme, parts []imuse.PartStatus) string {
	var out strings.Builder
	for _, part := range parts {
		sym := th.Symbols.Held
		color := th.Level(part.Volume, 127)
		switch {
		case part.Percussion:
			sym = th.Symbols.Rhythm
		case part.Output < 0:
			sym = th.Symbols.Suspended
			color = th.Muted()
		}
		out.WriteString(lipgloss.NewStyle().Foreground(color).Render(string(sym)))
	}
	return out.String()
}
