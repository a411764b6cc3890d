package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/lightmorse/internal/morse"
	"github.com/ColonelBlimp/lightmorse/internal/sensor"
)

func resetViperForTest() {
	viper.Reset()
}

// setupTestConfig isolates HOME and writes config as the user config file.
func setupTestConfig(t *testing.T, config string) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	configDir := filepath.Join(tmpDir, ".config", "lightmorse")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(config), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return tmpDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HasExpectedFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name      string
		shorthand string
	}{
		{"source", "s"},
		{"camera", "c"},
		{"delta", "t"},
		{"actuator", "a"},
		{"debug", "D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Errorf("flag %q not found", tt.name)
				return
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("flag %q shorthand = %q, want %q", tt.name, flag.Shorthand, tt.shorthand)
			}
			if flag.Usage == "" {
				t.Errorf("flag %q has no description", tt.name)
			}
		})
	}
}

func TestRootCmd_Properties(t *testing.T) {
	if rootCmd.Use != "lightmorse" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "lightmorse")
	}
	if rootCmd.Short == "" {
		t.Error("rootCmd.Short is empty")
	}
	if rootCmd.Long == "" {
		t.Error("rootCmd.Long is empty")
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	for _, name := range []string{"decode", "transmit", "encode", "calibrate", "history", "devices"} {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{name})
			if err != nil || cmd.Name() != name {
				t.Errorf("subcommand %q not found", name)
			}
		})
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	resetViperForTest()

	output, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("Execute() with --help error = %v", err)
	}
	for _, want := range []string{"lightmorse", "--source", "decode", "transmit"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name         string
		defaultValue string
	}{
		{"source", "camera"},
		{"camera", "0"},
		{"delta", "20"},
		{"actuator", "log"},
		{"debug", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Fatalf("flag %q not found", tt.name)
			}
			if flag.DefValue != tt.defaultValue {
				t.Errorf("flag %q default = %q, want %q", tt.name, flag.DefValue, tt.defaultValue)
			}
		})
	}
}

func TestInitConfig(t *testing.T) {
	resetViperForTest()
	setupTestConfig(t, "dot_ms: 120")

	initConfig()

	if viper.GetInt("dot_ms") != 120 {
		t.Errorf("viper.GetInt(dot_ms) = %d, want 120", viper.GetInt("dot_ms"))
	}
	if viper.GetString("source") != "camera" {
		t.Errorf("viper.GetString(source) = %q, want flag default camera", viper.GetString("source"))
	}
}

func TestEncodeCmd(t *testing.T) {
	resetViperForTest()
	setupTestConfig(t, "")

	output, err := execute(t, "encode", "sos", "73")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if got := strings.TrimSpace(output); got != "... --- ... ..-- --... ...--" {
		t.Errorf("encode output = %q", got)
	}
}

func TestEncodeCmd_WarnsAboutSkippedCharacters(t *testing.T) {
	resetViperForTest()
	setupTestConfig(t, "")

	output, err := execute(t, "encode", "s#s!#")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if !strings.Contains(output, `skipping characters with no Morse code: "#!"`) {
		t.Errorf("encode output missing the warning: %q", output)
	}
	if !strings.Contains(output, "... ...\n") {
		t.Errorf("encode output missing the code: %q", output)
	}
}

func TestEncodeCmd_Schedule(t *testing.T) {
	resetViperForTest()
	setupTestConfig(t, "")

	output, err := execute(t, "encode", "--schedule", "E")
	if err != nil {
		t.Fatalf("encode --schedule error = %v", err)
	}
	if !strings.Contains(output, "ON") || !strings.Contains(output, "200ms") {
		t.Errorf("schedule output missing the dot: %q", output)
	}
	if !strings.Contains(output, "total") || !strings.Contains(output, "600ms") {
		t.Errorf("schedule output missing the total: %q", output)
	}
	encodeCmd.Flags().Set("schedule", "false")
}

func TestTransmitCmd_LogActuator(t *testing.T) {
	resetViperForTest()
	setupTestConfig(t, `dot_ms: 10
dash_ms: 30
intra_gap_ms: 20
letter_gap_ms: 50
lead_in_ms: 0
min_on_ms: 5
min_off_ms: 5
dot_max_ms: 20
letter_gap_min_ms: 50
letter_gap_max_ms: 120
word_gap_min_ms: 120
inactivity_timeout_ms: 300
actuator: log
`)

	output, err := execute(t, "transmit", "et")
	if err != nil {
		t.Fatalf("transmit error = %v", err)
	}
	if !strings.Contains(output, "sent . -") || !strings.Contains(output, "2 marks") {
		t.Errorf("transmit output = %q", output)
	}
}

func TestTransmitCmd_RequiresText(t *testing.T) {
	resetViperForTest()
	if _, err := execute(t, "transmit"); err == nil {
		t.Error("transmit without text should fail")
	}
}

func writeRecording(t *testing.T, dir, text string) string {
	t.Helper()
	var frames []sensor.Frame
	now := time.UnixMilli(1_700_000_000_000)
	hold := func(level float64, d time.Duration) {
		for e := time.Duration(0); e < d; e += 10 * time.Millisecond {
			frames = append(frames, sensor.Frame{Timestamp: now, Level: level})
			now = now.Add(10 * time.Millisecond)
		}
	}
	hold(30, time.Second)
	for _, step := range morse.Encode(text, morse.DefaultTiming(), morse.Standard) {
		level := 30.0
		if step.On {
			level = 200
		}
		hold(level, step.Duration)
	}

	path := filepath.Join(dir, "recording.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create recording: %v", err)
	}
	defer f.Close()
	if err := sensor.WriteCSV(f, frames); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	return path
}

func TestDecodeCmd_Replay(t *testing.T) {
	resetViperForTest()
	home := setupTestConfig(t, "")
	recording := writeRecording(t, home, "CQ DE")

	output, err := execute(t, "decode", "--replay", recording)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !strings.Contains(output, "CQ DE\n") {
		t.Errorf("decode output = %q, want CQ DE", output)
	}
	decodeCmd.Flags().Set("replay", "")
}

func TestCalibrateCmd(t *testing.T) {
	resetViperForTest()
	home := setupTestConfig(t, "")
	recording := writeRecording(t, home, "PARIS PARIS")

	output, err := execute(t, "calibrate", recording)
	if err != nil {
		t.Fatalf("calibrate error = %v", err)
	}
	for _, key := range []string{"dot_max_ms:", "letter_gap_min_ms:", "word_gap_min_ms:", "# dots"} {
		if !strings.Contains(output, key) {
			t.Errorf("calibrate output missing %q: %q", key, output)
		}
	}
}

func TestHistoryCmd_RequiresDatabase(t *testing.T) {
	resetViperForTest()
	setupTestConfig(t, "")

	_, err := execute(t, "history")
	if err == nil || !strings.Contains(err.Error(), "history_db") {
		t.Errorf("history error = %v, want history_db error", err)
	}
}

func TestHistoryCmd_ShowsTransmissions(t *testing.T) {
	resetViperForTest()
	db := filepath.Join(t.TempDir(), "history.db")
	setupTestConfig(t, `dot_ms: 10
dash_ms: 30
intra_gap_ms: 20
letter_gap_ms: 50
lead_in_ms: 0
min_on_ms: 5
min_off_ms: 5
dot_max_ms: 20
letter_gap_min_ms: 50
letter_gap_max_ms: 120
word_gap_min_ms: 120
inactivity_timeout_ms: 300
history_db: "`+db+`"
`)

	if _, err := execute(t, "transmit", "k"); err != nil {
		t.Fatalf("transmit error = %v", err)
	}
	resetViperForTest()
	output, err := execute(t, "history", "--transmissions")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(output, "-.-") || !strings.Contains(output, `"k"`) {
		t.Errorf("history output = %q", output)
	}
	historyCmd.Flags().Set("transmissions", "false")
}

func TestRunDecode_InvalidConfig(t *testing.T) {
	resetViperForTest()
	setupTestConfig(t, "dot_max_ms: 0")

	_, err := execute(t, "decode")
	if err == nil {
		t.Fatal("expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "config") {
		t.Errorf("expected config error, got: %v", err)
	}
}
