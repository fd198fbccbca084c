package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"go-imuse/api"
	"go-imuse/midi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine headless with an HTTP command API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	engine, err := newEngine(cfg, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deviceMgr := midi.NewDeviceManager(cfg.SynthOutput.PortName)
	go deviceMgr.Run(ctx)
	go followDevices(ctx, deviceMgr, engine)
	go engine.Run(ctx)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	fmt.Printf("go-imuse listening on %s\n", cfg.Server.Addr)
	err = api.NewServer(engine).Run(ctx, cfg.Server.Addr)
	engine.Shutdown()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
