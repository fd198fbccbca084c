package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-imuse/config"
	"go-imuse/debug"
)

var (
	configPath string
	debugFlag  bool
	portFlag   string
	soundDir   string
	dialect    string

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "go-imuse",
	Short: "Interactive MIDI music engine",
	Long: `go-imuse plays game music resources on a MIDI synth and reacts to
commands, markers and hooks while they play.

Examples:
  go-imuse ports
  go-imuse play 12 --port fluid
  go-imuse monitor --sounds ./sounds
  go-imuse serve --addr :8080`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/go-imuse/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "write debug.log")
	rootCmd.PersistentFlags().StringVarP(&portFlag, "port", "p", "", "MIDI output port name (substring match)")
	rootCmd.PersistentFlags().StringVarP(&soundDir, "sounds", "s", "", "directory of <id>.<ext> sound files")
	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", "", "command dialect: scumm or samnmax")

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(portsCmd)
}

// setup loads the config and applies flags given on the command line
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.SynthOutput.PortName = portFlag
	}
	if flags.Changed("sounds") {
		cfg.SoundDir = soundDir
	}
	if flags.Changed("dialect") {
		cfg.Engine.Dialect = dialect
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if flags.Changed("debug") {
		cfg.Debug = debugFlag
	}

	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			return fmt.Errorf("enable debug log: %w", err)
		}
		debug.Log("config", "loaded: sounds=%s port=%q dialect=%s",
			cfg.SoundDir, cfg.SynthOutput.PortName, cfg.Engine.Dialect)
	}
	return nil
}
