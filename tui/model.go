package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-imuse/debug"
	"go-imuse/imuse"
	"go-imuse/midi"
	"go-imuse/theme"
	"go-imuse/widgets"
)

// refreshRate is how often the monitor redraws engine state
const refreshRate = 100 * time.Millisecond

// volumeStep is the master volume change per key press
const volumeStep = 16

type Model struct {
	Engine    *imuse.Engine
	DeviceMgr *midi.DeviceManager // nil when rendering to a fixed driver
	Theme     *theme.Theme

	// optional keyboard: key cueBase starts sound 1, the next key sound 2
	cues    *midi.CueInput
	cueBase int

	keys     keyMap
	help     help.Model
	status   imuse.Status
	sounds   []int
	cursor   int
	port     string
	message  string
	quitting bool
}

type tickMsg time.Time

type DeviceEventMsg midi.DeviceEvent

type CueMsg midi.Cue

func NewModel(engine *imuse.Engine, deviceMgr *midi.DeviceManager, th *theme.Theme) Model {
	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(th.FG())
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(th.Muted())
	h.Styles.FullKey = h.Styles.ShortKey
	h.Styles.FullDesc = h.Styles.ShortDesc

	return Model{
		Engine:    engine,
		DeviceMgr: deviceMgr,
		Theme:     th,
		keys:      defaultKeys(),
		help:      h,
		status:    engine.Status(),
		sounds:    engine.Sounds(),
	}
}

// WithCues drives the engine from a MIDI keyboard
func (m Model) WithCues(in *midi.CueInput, base int) Model {
	m.cues = in
	m.cueBase = base
	return m
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func ListenForCues(in *midi.CueInput) tea.Cmd {
	return func() tea.Msg {
		cue, ok := <-in.Events()
		if !ok {
			return nil
		}
		return CueMsg(cue)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tick()}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	if m.cues != nil {
		cmds = append(cmds, ListenForCues(m.cues))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tickMsg:
		m.status = m.Engine.Status()
		return m, tick()

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.Engine.SetDriver(event.Driver)
			m.port = event.Port
			m.message = "connected " + event.Port
		case midi.DeviceDisconnected:
			m.Engine.SetDriver(nil)
			m.port = ""
			m.message = "lost " + event.Port
		}
		if m.DeviceMgr == nil {
			return m, nil
		}
		return m, ListenForDevices(m.DeviceMgr)

	case CueMsg:
		m.handleCue(midi.Cue(msg))
		m.status = m.Engine.Status()
		if m.cues == nil {
			return m, nil
		}
		return m, ListenForCues(m.cues)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.sounds)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Start):
		if sound, ok := m.selected(); ok {
			if err := m.Engine.StartSound(sound); err != nil {
				m.message = fmt.Sprintf("start %d: %v", sound, err)
				debug.Log("tui", "start %d: %v", sound, err)
			} else {
				m.message = fmt.Sprintf("started %d", sound)
			}
		}

	case key.Matches(msg, m.keys.Stop):
		if sound, ok := m.selected(); ok {
			if err := m.Engine.StopSound(sound); err != nil {
				m.message = fmt.Sprintf("stop %d: %v", sound, err)
			}
		}

	case key.Matches(msg, m.keys.Pause):
		m.Engine.Pause(!m.Engine.Paused())

	case key.Matches(msg, m.keys.VolUp):
		m.Engine.SetMasterVolume(m.Engine.MasterVolume() + volumeStep)

	case key.Matches(msg, m.keys.VolDown):
		m.Engine.SetMasterVolume(m.Engine.MasterVolume() - volumeStep)

	case key.Matches(msg, m.keys.StopAll):
		m.Engine.StopAllSounds()

	case key.Matches(msg, m.keys.Slot):
		slot := int(msg.String()[0] - '1')
		players := m.Engine.Status().Players
		if slot < len(players) {
			if p := players[slot]; p.Mode != "free" {
				m.Engine.StopSound(p.Sound)
			}
		}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.status = m.Engine.Status()
	return m, nil
}

// handleCue toggles the sound under a pressed key. The volume
// controller sets the master volume.
func (m *Model) handleCue(cue midi.Cue) {
	switch cue.Kind {
	case midi.CueNoteOn:
		sound := int(cue.Note) - m.cueBase + 1
		if sound <= 0 {
			return
		}
		if m.Engine.SoundActive(sound) {
			m.Engine.StopSound(sound)
			m.message = fmt.Sprintf("stopped %d", sound)
			return
		}
		if err := m.Engine.StartSound(sound); err != nil {
			m.message = fmt.Sprintf("start %d: %v", sound, err)
			return
		}
		m.message = fmt.Sprintf("started %d", sound)
	case midi.CueControl:
		if cue.Note == midi.CCVolume {
			m.Engine.SetMasterVolume(int(cue.Value)<<1 | int(cue.Value&1))
		}
	}
}

func (m Model) selected() (int, bool) {
	if m.cursor < 0 || m.cursor >= len(m.sounds) {
		return 0, false
	}
	return m.sounds[m.cursor], true
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	th := m.Theme
	st := m.status

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	selStyle := lipgloss.NewStyle().Foreground(th.Success())

	state := "PLAY"
	if st.Paused {
		state = "PAUSE"
	}
	port := m.port
	if port == "" {
		port = "no output"
	}
	header := headerStyle.Render(fmt.Sprintf("go-imuse  %s  %s  tempo:%d%%  timer:%d",
		state, st.Dialect, st.TempoFactor, st.MusicTimer))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("  ")
	out.WriteString(dimStyle.Render(port))
	out.WriteString("\n\n")

	out.WriteString(fmt.Sprintf("master %s  music %s  sfx %s\n\n",
		widgets.RenderMeter(th, st.MasterVolume, 255, 8),
		widgets.RenderMeter(th, st.MusicVolume, 255, 8),
		widgets.RenderMeter(th, st.SfxVolume, 255, 8)))

	for _, p := range st.Players {
		out.WriteString(widgets.RenderPlayer(th, p))
		out.WriteString("\n")
	}

	out.WriteString("\nchannels ")
	out.WriteString(widgets.RenderChannelMap(th, st.Channels))
	out.WriteString(dimStyle.Render(fmt.Sprintf("\ntriggers:%d deferred:%d queue:%d",
		st.Triggers, st.Deferred, st.QueueDepth)))
	out.WriteString("\n\nsounds ")
	for i, id := range m.sounds {
		label := fmt.Sprintf(" %d ", id)
		if i == m.cursor {
			label = selStyle.Render("[" + strings.TrimSpace(label) + "]")
		}
		out.WriteString(label)
	}

	if m.message != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.message))
	}
	out.WriteString("\n\n")
	out.WriteString(m.help.View(m.keys))
	return out.String()
}
