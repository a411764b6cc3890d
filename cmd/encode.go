package cmd

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/lightmorse/internal/morse"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <text>",
	Short: "Print the Morse code for text",
	Long: `Prints the Morse code for the text, letters separated by a space. With
--schedule the lamp schedule is printed instead, one step per line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().Bool("schedule", false, "print the ON/OFF schedule with durations")
}

func runEncode(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	out := cmd.OutOrStdout()
	warnUnsupported(cmd, text)

	if sched, _ := cmd.Flags().GetBool("schedule"); !sched {
		fmt.Fprintln(out, morse.Standard.ToMorse(text))
		return nil
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}
	schedule := morse.Encode(text, s.Timing(), morse.Standard)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, step := range schedule {
		state := "OFF"
		if step.On {
			state = "ON"
		}
		fmt.Fprintf(w, "%c\t%s\t%s\n", step.Letter, state, step.Duration)
	}
	fmt.Fprintf(w, "total\t\t%s\n", schedule.Total())
	return w.Flush()
}

// warnUnsupported names the characters that will be left out of the Morse.
func warnUnsupported(cmd *cobra.Command, text string) {
	var skipped []rune
	for _, r := range text {
		if !morse.Standard.Supports(r) && !slices.Contains(skipped, r) {
			skipped = append(skipped, r)
		}
	}
	if len(skipped) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipping characters with no Morse code: %q\n", string(skipped))
	}
}
