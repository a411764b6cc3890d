// cmd/root.go
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/lightmorse/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "lightmorse",
	Short: "Morse code over light: decode a flashing lamp, flash text out",
	Long: `Decodes Morse code from a flashing light seen by a camera, a serial
photoresistor or a photodiode on a sound card input, and transmits text as
Morse by switching a lamp through GPIO or a serial controller.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().StringP("source", "s", "camera", "light source: camera, serial, audio or replay")
	rootCmd.PersistentFlags().IntP("camera", "c", 0, "camera device index")
	rootCmd.PersistentFlags().Float64P("delta", "t", 20, "brightness change (0-255) that counts as an edge")
	rootCmd.PersistentFlags().StringP("actuator", "a", "log", "lamp driver: log, gpio or serial")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	rootCmd.AddCommand(decodeCmd, transmitCmd, encodeCmd, calibrateCmd, historyCmd, devicesCmd)
}

// bindFlags maps flags onto config keys. It runs on every initialisation
// because viper.Reset drops bindings.
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	viper.BindPFlag("source", flags.Lookup("source"))
	viper.BindPFlag("camera_index", flags.Lookup("camera"))
	viper.BindPFlag("delta_brightness_threshold", flags.Lookup("delta"))
	viper.BindPFlag("actuator", flags.Lookup("actuator"))
	viper.BindPFlag("debug", flags.Lookup("debug"))
}

func initConfig() {
	bindFlags()
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(viper.GetBool("debug"))
}

// setupLogging sends logs to stderr so decoded text on stdout stays clean.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// loadSettings reads and validates the merged configuration.
func loadSettings() (*config.Settings, error) {
	s, err := config.Get()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return s, nil
}
