package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/lightmorse/internal/cli/send"
)

var transmitCmd = &cobra.Command{
	Use:   "transmit <text>",
	Short: "Flash text as Morse on the configured lamp",
	Long: `Encodes the text and switches the configured lamp through the schedule.
Characters without a Morse code are skipped. Ctrl-C stops the transmission and
leaves the lamp off.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTransmit,
}

func runTransmit(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snd, err := send.NewSender(*s)
	if err != nil {
		return err
	}
	defer snd.Close()

	text := strings.Join(args, " ")
	warnUnsupported(cmd, text)
	report, err := snd.Send(ctx, text)
	out := cmd.OutOrStdout()
	if report.Canceled {
		fmt.Fprintf(out, "cancelled after %d marks\n", report.Pulses)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "sent %s (%d marks, %d failed) in %s\n",
		report.Morse, report.Pulses, report.Failures, report.Finished.Sub(report.Started).Round(time.Millisecond))
	return err
}
