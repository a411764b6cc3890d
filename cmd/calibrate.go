package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/lightmorse/internal/morse"
	"github.com/ColonelBlimp/lightmorse/internal/receiver"
	"github.com/ColonelBlimp/lightmorse/internal/sensor"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <recording.csv>",
	Short: "Suggest timing thresholds from a recorded transmission",
	Long: `Runs a recording through the edge detector, clusters the ON and OFF
durations and prints threshold settings matching that sender. Paste the
output into the config file to use them.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	frames, err := sensor.LoadCSV(args[0])
	if err != nil {
		return err
	}
	durations, err := receiver.CollectDurations(frames, s.Thresholds())
	if err != nil {
		return err
	}
	cal, err := morse.SuggestThresholds(durations, s.Thresholds())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printCluster := func(name string, c morse.Cluster) {
		if c.Count == 0 {
			return
		}
		fmt.Fprintf(out, "# %-12s %4d  mean %6.0fms  sd %5.0fms\n", name, c.Count, c.Mean, c.StdDev)
	}
	printCluster("dots", cal.Dots)
	printCluster("dashes", cal.Dashes)
	printCluster("intra gaps", cal.IntraGaps)
	printCluster("letter gaps", cal.LetterGaps)
	printCluster("word gaps", cal.WordGaps)

	th := cal.Suggested
	fmt.Fprintf(out, "dot_max_ms: %d\n", th.DotMax.Milliseconds())
	fmt.Fprintf(out, "letter_gap_min_ms: %d\n", th.LetterGapMin.Milliseconds())
	fmt.Fprintf(out, "letter_gap_max_ms: %d\n", th.LetterGapMax.Milliseconds())
	fmt.Fprintf(out, "word_gap_min_ms: %d\n", th.WordGapMin.Milliseconds())
	fmt.Fprintf(out, "inactivity_timeout_ms: %d\n", th.InactivityTimeout.Milliseconds())
	return nil
}
