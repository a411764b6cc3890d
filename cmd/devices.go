package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/lightmorse/internal/cli/decode"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture devices for the photodiode source",
	RunE: func(cmd *cobra.Command, _ []string) error {
		devices, err := decode.ListAudioDevices()
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		for _, d := range devices {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", d.Index, d.Name)
		}
		return nil
	},
}
