package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-imuse/midi"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		outs, err := midi.OutPorts()
		if err != nil {
			return err
		}
		ins, err := midi.InPorts()
		if err != nil {
			return err
		}

		fmt.Println("=== Output ports ===")
		for i, name := range outs {
			fmt.Printf("  %d: %s\n", i, name)
		}
		fmt.Println("\n=== Input ports ===")
		for i, name := range ins {
			fmt.Printf("  %d: %s\n", i, name)
		}
		return nil
	},
}
