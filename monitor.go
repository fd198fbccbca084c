package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-imuse/config"
	"go-imuse/debug"
	"go-imuse/midi"
	"go-imuse/theme"
	"go-imuse/tui"
)

var resume bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live view of players and channels",
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&resume, "resume", false, "restore the state saved on last exit")
}

func loadTheme(cfg *config.Config) *theme.Theme {
	path := cfg.PalettePath
	if path == "" {
		if dir, err := config.ConfigDir(); err == nil {
			path = filepath.Join(dir, "palette.gpl")
		}
	}
	return theme.New(theme.LoadOrDefault(path))
}

func runMonitor(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cfg, nil)
	if err != nil {
		return err
	}
	if resume {
		if err := restoreState(engine, statePath(cfg)); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Output port is hot-plugged; the monitor switches drivers on events
	deviceMgr := midi.NewDeviceManager(cfg.SynthOutput.PortName)
	go deviceMgr.Run(ctx)
	go engine.Run(ctx)

	m := tui.NewModel(engine, deviceMgr, loadTheme(cfg))
	if cfg.CueInput.PortName != "" {
		cues, err := midi.OpenCueInput(cfg.CueInput.PortName)
		if err != nil {
			debug.Log("midi", "cue input: %v", err)
			fmt.Println("cue input unavailable:", err)
		} else {
			defer cues.Close()
			m = m.WithCues(cues, cfg.CueInput.BaseNote)
		}
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, runErr := p.Run()

	if err := saveState(engine, statePath(cfg)); err != nil {
		debug.Log("imuse", "save state: %v", err)
	}
	engine.Shutdown()
	return runErr
}
