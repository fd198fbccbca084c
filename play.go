package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"go-imuse/imuse"
	"go-imuse/midi"
)

var (
	playSFX    bool
	noteOffset int
)

var playCmd = &cobra.Command{
	Use:   "play <sound-id>...",
	Short: "Play sounds on the output port until they end",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&playSFX, "sfx", false, "start as sound effects (sfx volume applies)")
	playCmd.Flags().IntVar(&noteOffset, "transpose", 0, "note offset applied to every note")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ids := make([]int, len(args))
	for i, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil || id <= 0 {
			return fmt.Errorf("bad sound id %q", a)
		}
		ids[i] = id
	}

	port, err := midi.OpenPort(cfg.SynthOutput.PortName)
	if err != nil {
		return err
	}
	defer port.Close()

	engine, err := newEngine(cfg, port)
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	for _, id := range ids {
		var err error
		switch {
		case playSFX:
			err = engine.StartSFX(id)
		case noteOffset != 0:
			err = engine.StartSoundWithNoteOffset(id, noteOffset)
		default:
			err = engine.StartSound(id)
		}
		if err != nil {
			return fmt.Errorf("sound %d: %w", id, err)
		}
	}
	fmt.Printf("playing %v on %s (ctrl+c to stop)\n", ids, port.Name())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go engine.Run(ctx)

	return waitForSounds(ctx, engine, ids)
}

func waitForSounds(ctx context.Context, engine *imuse.Engine, ids []int) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			active := false
			for _, id := range ids {
				if engine.SoundActive(id) {
					active = true
				}
			}
			if !active {
				return nil
			}
		}
	}
}
