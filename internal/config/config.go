// Package config loads the application settings from flags, environment,
// an optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "DOJO"

// Keys understood by Load
const (
	KeyDBPath           = "db.path"
	KeyLogFile          = "log.file"
	KeyLogMaxSizeMB     = "log.max_size_mb"
	KeyLogMaxBackups    = "log.max_backups"
	KeyLogMaxAgeDays    = "log.max_age_days"
	KeyReadyCountdown   = "player.ready_countdown"
	KeyRepetitionCap    = "player.repetition_cap"
	KeyTick             = "player.tick"
	KeyMatchThreshold   = "matcher.threshold"
	KeyWristMock        = "wrist.mock"
	KeyWristMockPort    = "wrist.mock_port"
	KeyWristScanTimeout = "wrist.scan_timeout"
	KeyRemoteTimeout    = "wrist.remote_timeout"
	KeySpeakCommand     = "speech.command"
)

// Flag names that only steer loading and have no config key
const (
	FlagConfigFile = "config"
	FlagEnvFile    = "env-file"
)

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type PlayerConfig struct {
	ReadyCountdown time.Duration `mapstructure:"ready_countdown"`
	RepetitionCap  int           `mapstructure:"repetition_cap"`
	Tick           time.Duration `mapstructure:"tick"`
}

type MatcherConfig struct {
	Threshold int `mapstructure:"threshold"`
}

type WristConfig struct {
	// Mock runs the in-process wrist device with its HTTP debug page instead of BLE
	Mock          bool          `mapstructure:"mock"`
	MockPort      int           `mapstructure:"mock_port"`
	ScanTimeout   time.Duration `mapstructure:"scan_timeout"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
}

type SpeechConfig struct {
	// Command is an external TTS program (e.g. "espeak"); empty only logs announcements
	Command string `mapstructure:"command"`
}

type Config struct {
	ConfigDir string        `mapstructure:"-"`
	DB        DBConfig      `mapstructure:"db"`
	Log       LogConfig     `mapstructure:"log"`
	Player    PlayerConfig  `mapstructure:"player"`
	Matcher   MatcherConfig `mapstructure:"matcher"`
	Wrist     WristConfig   `mapstructure:"wrist"`
	Speech    SpeechConfig  `mapstructure:"speech"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDBPath, DefaultDBPath())
	v.SetDefault(KeyLogFile, DefaultLogPath())
	v.SetDefault(KeyLogMaxSizeMB, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAgeDays, 28)
	v.SetDefault(KeyReadyCountdown, 10*time.Second)
	v.SetDefault(KeyRepetitionCap, 10)
	v.SetDefault(KeyTick, time.Second)
	v.SetDefault(KeyMatchThreshold, 5)
	v.SetDefault(KeyWristMock, false)
	v.SetDefault(KeyWristMockPort, 8099)
	v.SetDefault(KeyWristScanTimeout, 30*time.Second)
	v.SetDefault(KeyRemoteTimeout, 3*time.Second)
	v.SetDefault(KeySpeakCommand, "")
}

// RegisterFlags adds the command line flags Load knows how to bind
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(FlagConfigFile, "", "config file (default $XDG_CONFIG_HOME/dojo-trainer/config.toml)")
	flags.String(FlagEnvFile, ".env", "dotenv file with DOJO_* variables, ignored when missing")
	flags.String("db", "", "path of the SQLite database")
	flags.String("log-file", "", "path of the rotating log file")
	flags.Duration("ready-countdown", 0, "countdown before the first step, negative disables it")
	flags.Int("repetition-cap", 0, "repetitions per side for strikes and blocks")
	flags.Int("match-threshold", 0, "maximum edit distance accepted for spoken names")
	flags.Bool("mock-wrist", false, "use the simulated wrist device with an HTTP debug page")
	flags.Int("mock-port", 0, "port of the simulated wrist device debug page")
	flags.String("speak-command", "", "external text to speech command")
}

var flagKeys = map[string]string{
	"db":              KeyDBPath,
	"log-file":        KeyLogFile,
	"ready-countdown": KeyReadyCountdown,
	"repetition-cap":  KeyRepetitionCap,
	"match-threshold": KeyMatchThreshold,
	"mock-wrist":      KeyWristMock,
	"mock-port":       KeyWristMockPort,
	"speak-command":   KeySpeakCommand,
}

// Load resolves the configuration. Sources in priority order are flags that
// were set explicitly, DOJO_* environment variables (also read from the .env
// file), the config file and finally the defaults. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	envFile := ".env"
	configFile := ""
	if flags != nil {
		if f := flags.Lookup(FlagEnvFile); f != nil {
			envFile = f.Value.String()
		}
		if f := flags.Lookup(FlagConfigFile); f != nil {
			configFile = f.Value.String()
		}
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	// godotenv never overrides variables that are already set
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultConfigDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigDir = DefaultConfigDir()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch {
	case c.DB.Path == "":
		return errors.New("config: db.path is empty")
	case c.Player.RepetitionCap <= 0:
		return fmt.Errorf("config: player.repetition_cap must be positive, got %d", c.Player.RepetitionCap)
	case c.Player.Tick <= 0:
		return fmt.Errorf("config: player.tick must be positive, got %v", c.Player.Tick)
	case c.Matcher.Threshold < 0:
		return fmt.Errorf("config: matcher.threshold must not be negative, got %d", c.Matcher.Threshold)
	case c.Wrist.ScanTimeout < 0:
		return fmt.Errorf("config: wrist.scan_timeout must not be negative, got %v", c.Wrist.ScanTimeout)
	case c.Wrist.RemoteTimeout <= 0:
		return fmt.Errorf("config: wrist.remote_timeout must be positive, got %v", c.Wrist.RemoteTimeout)
	case c.Wrist.MockPort <= 0 || c.Wrist.MockPort > 65535:
		return fmt.Errorf("config: wrist.mock_port out of range: %d", c.Wrist.MockPort)
	case c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0:
		return errors.New("config: log rotation settings must not be negative")
	}
	return nil
}
