package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"go-imuse/config"
	"go-imuse/debug"
	"go-imuse/imuse"
	"go-imuse/midi"
)

// newEngine builds an engine from the config. drv may be nil until an
// output port shows up.
func newEngine(cfg *config.Config, drv midi.Driver) (*imuse.Engine, error) {
	bank, err := imuse.LoadDir(cfg.SoundDir)
	if err != nil {
		return nil, err
	}

	d, ok := imuse.ParseDialect(cfg.Engine.Dialect)
	if !ok {
		return nil, fault.Wrap(imuse.ErrOutOfRange, fmsg.With("unknown dialect "+cfg.Engine.Dialect))
	}

	opts := []imuse.Option{
		imuse.WithDialect(d),
		imuse.WithNativeMT32(cfg.SynthOutput.NativeMT32),
		imuse.WithTimerPeriod(time.Duration(cfg.Engine.TimerPeriodMs) * time.Millisecond),
	}
	if len(cfg.SynthOutput.Channels) > 0 {
		chs := make([]uint8, len(cfg.SynthOutput.Channels))
		for i, c := range cfg.SynthOutput.Channels {
			chs[i] = uint8(c)
		}
		opts = append(opts, imuse.WithChannels(chs...))
	}

	e := imuse.New(drv, bank, opts...)

	recycle := 0
	if cfg.Engine.RecyclePlayers {
		recycle = 1
	}
	for _, p := range []struct{ prop, value int }{
		{imuse.PropTempoBase, cfg.Engine.TempoFactor},
		{imuse.PropLimitPlayers, cfg.Engine.PlayerLimit},
		{imuse.PropRecyclePlayers, recycle},
	} {
		if err := e.SetProperty(p.prop, p.value); err != nil {
			return nil, err
		}
	}
	e.SetMasterVolume(cfg.Engine.MasterVolume)
	e.SetMusicVolume(cfg.Engine.MusicVolume)
	e.SetSfxVolume(cfg.Engine.SfxVolume)
	return e, nil
}

// statePath is where the engine state is kept between runs
func statePath(cfg *config.Config) string {
	if cfg.StatePath != "" {
		return cfg.StatePath
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "imuse-state.json"
	}
	return filepath.Join(dir, "state.json")
}

// restoreState loads a saved state if one exists
func restoreState(e *imuse.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	if err := e.Load(f); err != nil {
		return fault.Wrap(err, fmsg.With("restore "+path))
	}
	debug.Log("imuse", "restored state from %s", path)
	return nil
}

func saveState(e *imuse.Engine, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := e.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// followDevices switches the engine output as the synth port comes and
// goes. Used when no UI is reading the device events.
func followDevices(ctx context.Context, dm *midi.DeviceManager, e *imuse.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-dm.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case midi.DeviceConnected:
				e.SetDriver(ev.Driver)
			case midi.DeviceDisconnected:
				e.SetDriver(nil)
			}
		}
	}
}
