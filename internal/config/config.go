// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/lightmorse/internal/morse"
)

const (
	AppName       = "lightmorse"
	ConfigType    = "yaml"
	DefaultConfig = `# Light Morse Configuration

# Receive: edge detection
delta_brightness_threshold: 20  # Brightness change (0-255) that counts as an edge
min_on_ms: 50                   # ON shorter than this is sensor noise
min_off_ms: 200                 # OFF shorter than this is sensor noise

# Receive: classification
dot_max_ms: 350                 # ON shorter than this is a dot, longer is a dash
letter_gap_min_ms: 1000         # OFF at least this long ends a letter
letter_gap_max_ms: 1800         # Upper end of the nominal letter gap
word_gap_min_ms: 1800           # OFF at least this long ends a word
inactivity_timeout_ms: 3000     # Flush the pending letter after this much silence
tick_interval_ms: 250           # How often the inactivity timeout is checked

# Transmit
dot_ms: 200
dash_ms: 600
intra_gap_ms: 400               # Dark time between symbols of a letter
letter_gap_ms: 1000             # Extra dark time between letters, on top of intra_gap_ms
lead_in_ms: 1000                # Dark pause before the first mark

# Light sensor: camera, serial, audio or replay
source: "camera"
camera_index: 0
camera_fps: 0                   # 0 leaves the driver default
roi_ratio: 2                    # ROI side = shorter frame side / roi_ratio
clahe: true                     # Contrast enhancement before measuring
serial_port: "/dev/ttyUSB0"     # Photoresistor board for source: serial
serial_baud: 115200
audio_device_index: -1          # -1 for default capture device
sample_rate: 48000
carrier_frequency: 1000         # Chopping frequency of the lamp in Hz
block_size: 480                 # Samples per brightness reading
replay_file: ""                 # CSV of timestamp_ms,value for source: replay
replay_speed: 1.0               # 0 replays as fast as possible

# Lamp: log, gpio or serial
actuator: "log"
gpio_chip: "gpiochip0"
gpio_line: 17
gpio_active_low: false
actuator_serial_port: "/dev/ttyACM0"

# Outputs
mqtt_broker: ""                 # e.g. tcp://localhost:1883, empty disables MQTT
mqtt_topic: "lightmorse"
history_db: ""                  # SQLite file, empty disables history

debug: false                    # Enable debug output
`
)

var validSources = map[string]bool{"camera": true, "serial": true, "audio": true, "replay": true}

var validActuators = map[string]bool{"log": true, "gpio": true, "serial": true}

// Settings holds all application configuration
type Settings struct {
	// Receive: edge detection
	DeltaThreshold float64 `mapstructure:"delta_brightness_threshold"`
	MinOnMS        int     `mapstructure:"min_on_ms"`
	MinOffMS       int     `mapstructure:"min_off_ms"`

	// Receive: classification
	DotMaxMS            int `mapstructure:"dot_max_ms"`
	LetterGapMinMS      int `mapstructure:"letter_gap_min_ms"`
	LetterGapMaxMS      int `mapstructure:"letter_gap_max_ms"`
	WordGapMinMS        int `mapstructure:"word_gap_min_ms"`
	InactivityTimeoutMS int `mapstructure:"inactivity_timeout_ms"`
	TickIntervalMS      int `mapstructure:"tick_interval_ms"`

	// Transmit
	DotMS       int `mapstructure:"dot_ms"`
	DashMS      int `mapstructure:"dash_ms"`
	IntraGapMS  int `mapstructure:"intra_gap_ms"`
	LetterGapMS int `mapstructure:"letter_gap_ms"`
	LeadInMS    int `mapstructure:"lead_in_ms"`

	// Light sensor
	Source           string  `mapstructure:"source"`
	CameraIndex      int     `mapstructure:"camera_index"`
	CameraFPS        float64 `mapstructure:"camera_fps"`
	ROIRatio         int     `mapstructure:"roi_ratio"`
	CLAHE            bool    `mapstructure:"clahe"`
	SerialPort       string  `mapstructure:"serial_port"`
	SerialBaud       int     `mapstructure:"serial_baud"`
	AudioDeviceIndex int     `mapstructure:"audio_device_index"`
	SampleRate       float64 `mapstructure:"sample_rate"`
	CarrierFrequency float64 `mapstructure:"carrier_frequency"`
	BlockSize        int     `mapstructure:"block_size"`
	ReplayFile       string  `mapstructure:"replay_file"`
	ReplaySpeed      float64 `mapstructure:"replay_speed"`

	// Lamp
	Actuator           string `mapstructure:"actuator"`
	GPIOChip           string `mapstructure:"gpio_chip"`
	GPIOLine           int    `mapstructure:"gpio_line"`
	GPIOActiveLow      bool   `mapstructure:"gpio_active_low"`
	ActuatorSerialPort string `mapstructure:"actuator_serial_port"`

	// Outputs
	MQTTBroker string `mapstructure:"mqtt_broker"`
	MQTTTopic  string `mapstructure:"mqtt_topic"`
	HistoryDB  string `mapstructure:"history_db"`

	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/lightmorse/
func Init() error {
	viper.SetDefault("delta_brightness_threshold", morse.DefaultDeltaThreshold)
	viper.SetDefault("min_on_ms", ms(morse.DefaultMinOn))
	viper.SetDefault("min_off_ms", ms(morse.DefaultMinOff))
	viper.SetDefault("dot_max_ms", ms(morse.DefaultDotMax))
	viper.SetDefault("letter_gap_min_ms", ms(morse.DefaultLetterGapMin))
	viper.SetDefault("letter_gap_max_ms", ms(morse.DefaultLetterGapMax))
	viper.SetDefault("word_gap_min_ms", ms(morse.DefaultWordGapMin))
	viper.SetDefault("inactivity_timeout_ms", ms(morse.DefaultInactivityTimeout))
	viper.SetDefault("tick_interval_ms", 250)
	viper.SetDefault("dot_ms", ms(morse.DefaultDotDuration))
	viper.SetDefault("dash_ms", ms(morse.DefaultDashDuration))
	viper.SetDefault("intra_gap_ms", ms(morse.DefaultIntraGap))
	viper.SetDefault("letter_gap_ms", ms(morse.DefaultLetterGap))
	viper.SetDefault("lead_in_ms", 1000)
	viper.SetDefault("source", "camera")
	viper.SetDefault("camera_index", 0)
	viper.SetDefault("camera_fps", 0.0)
	viper.SetDefault("roi_ratio", 2)
	viper.SetDefault("clahe", true)
	viper.SetDefault("serial_port", "/dev/ttyUSB0")
	viper.SetDefault("serial_baud", 115200)
	viper.SetDefault("audio_device_index", -1)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("carrier_frequency", 1000)
	viper.SetDefault("block_size", 480)
	viper.SetDefault("replay_file", "")
	viper.SetDefault("replay_speed", 1.0)
	viper.SetDefault("actuator", "log")
	viper.SetDefault("gpio_chip", "gpiochip0")
	viper.SetDefault("gpio_line", 17)
	viper.SetDefault("gpio_active_low", false)
	viper.SetDefault("actuator_serial_port", "/dev/ttyACM0")
	viper.SetDefault("mqtt_broker", "")
	viper.SetDefault("mqtt_topic", "lightmorse")
	viper.SetDefault("history_db", "")
	viper.SetDefault("debug", false)

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ms(d time.Duration) int {
	return int(d / time.Millisecond)
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Thresholds returns the receive thresholds
func (s *Settings) Thresholds() morse.Thresholds {
	return morse.Thresholds{
		DeltaThreshold:    s.DeltaThreshold,
		DotMax:            msDuration(s.DotMaxMS),
		LetterGapMin:      msDuration(s.LetterGapMinMS),
		LetterGapMax:      msDuration(s.LetterGapMaxMS),
		WordGapMin:        msDuration(s.WordGapMinMS),
		InactivityTimeout: msDuration(s.InactivityTimeoutMS),
		MinOn:             msDuration(s.MinOnMS),
		MinOff:            msDuration(s.MinOffMS),
	}
}

// Timing returns the transmit durations
func (s *Settings) Timing() morse.Timing {
	return morse.Timing{
		Dot:       msDuration(s.DotMS),
		Dash:      msDuration(s.DashMS),
		IntraGap:  msDuration(s.IntraGapMS),
		LetterGap: msDuration(s.LetterGapMS),
	}
}

// LeadIn returns the pause before a transmission
func (s *Settings) LeadIn() time.Duration {
	return msDuration(s.LeadInMS)
}

// TickInterval returns how often the receiver checks the inactivity timeout
func (s *Settings) TickInterval() time.Duration {
	return msDuration(s.TickIntervalMS)
}

func msDuration(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Thresholds and timing carry their own consistency rules
	if err := s.Thresholds().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("receive thresholds: %w", err))
	}
	if s.DeltaThreshold > 255 {
		errs = append(errs, fmt.Errorf("delta_brightness_threshold must be at most 255, got %v", s.DeltaThreshold))
	}
	if err := s.Timing().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("transmit timing: %w", err))
	} else if err := morse.CheckTiming(s.Timing(), s.Thresholds()); err != nil {
		errs = append(errs, fmt.Errorf("transmit timing against receive thresholds: %w", err))
	}
	if s.TickIntervalMS < 10 || s.TickIntervalMS > s.InactivityTimeoutMS {
		errs = append(errs, fmt.Errorf("tick_interval_ms must be between 10 and inactivity_timeout_ms, got %d", s.TickIntervalMS))
	}
	if s.LeadInMS < 0 {
		errs = append(errs, fmt.Errorf("lead_in_ms must not be negative, got %d", s.LeadInMS))
	}

	// Light sensor
	if !validSources[s.Source] {
		errs = append(errs, fmt.Errorf("source must be one of camera, serial, audio, replay, got %q", s.Source))
	}
	if s.ROIRatio < 1 || s.ROIRatio > 16 {
		errs = append(errs, fmt.Errorf("roi_ratio must be between 1 and 16, got %d", s.ROIRatio))
	}
	if s.CameraFPS < 0 {
		errs = append(errs, fmt.Errorf("camera_fps must not be negative, got %v", s.CameraFPS))
	}
	if s.SerialBaud <= 0 {
		errs = append(errs, fmt.Errorf("serial_baud must be positive, got %d", s.SerialBaud))
	}
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.BlockSize < 32 || s.BlockSize > 8192 {
		errs = append(errs, fmt.Errorf("block_size must be between 32 and 8192, got %d", s.BlockSize))
	}
	// Nyquist check: the carrier must be below half the sample rate
	if s.CarrierFrequency <= 0 || s.CarrierFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("carrier_frequency (%v Hz) must be positive and below Nyquist frequency (%v Hz)", s.CarrierFrequency, s.SampleRate/2))
	}
	if s.Source == "replay" && s.ReplayFile == "" {
		errs = append(errs, errors.New("replay_file must be set when source is replay"))
	}
	if s.ReplaySpeed < 0 {
		errs = append(errs, fmt.Errorf("replay_speed must not be negative, got %v", s.ReplaySpeed))
	}

	// Lamp
	if !validActuators[s.Actuator] {
		errs = append(errs, fmt.Errorf("actuator must be one of log, gpio, serial, got %q", s.Actuator))
	}
	if s.GPIOLine < 0 {
		errs = append(errs, fmt.Errorf("gpio_line must not be negative, got %d", s.GPIOLine))
	}

	if s.MQTTBroker != "" && s.MQTTTopic == "" {
		errs = append(errs, errors.New("mqtt_topic must be set when mqtt_broker is"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
