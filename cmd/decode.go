package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/lightmorse/internal/cli/decode"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode Morse from the configured light source",
	Long: `Reads brightness from the configured source and prints decoded text as
each letter completes. Stop with Ctrl-C; a replayed recording stops by itself.`,
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().String("replay", "", "decode a recorded CSV (timestamp_ms,value) instead of a live source")
	decodeCmd.Flags().Float64("speed", 0, "replay speed factor; 0 decodes as fast as possible")
}

func runDecode(cmd *cobra.Command, _ []string) error {
	if file, _ := cmd.Flags().GetString("replay"); file != "" {
		speed, _ := cmd.Flags().GetFloat64("speed")
		viper.Set("source", "replay")
		viper.Set("replay_file", file)
		viper.Set("replay_speed", speed)
	}
	s, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := decode.NewDecoder(*s, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer d.Close()

	err = d.Run(ctx)
	st := d.Stats()
	slog.Info("decoder stopped",
		"frames", st.Frames,
		"dropped", st.Dropped,
		"anomalies", st.Anomalies,
		"discarded", st.Discarded,
		"letters", st.Flushes)
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
