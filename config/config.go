// Package config loads the configuration of ecgscope with viper and reloads it when the
// configuration file changes.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/playback"
)

const (
	EnvPrefix          = "ECGSCOPE"
	defaultReloadDelay = 200 * time.Millisecond
)

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Scope    ScopeConfig    `mapstructure:"scope"`
	Telnet   TelnetConfig   `mapstructure:"telnet"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type ScopeConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// TelnetConfig holds the address of the console, an empty address disables it.
type TelnetConfig struct {
	Address string `mapstructure:"address"`
}

// NATSConfig holds the NATS connection, an empty url disables publishing to NATS.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type PlaybackConfig struct {
	Dataset    string `mapstructure:"dataset"`
	Class      string `mapstructure:"class"`
	Speed      string `mapstructure:"speed"`
	BeatLength int    `mapstructure:"beat_length"`
	Beats      int    `mapstructure:"beats"`
}

// LoggingConfig holds the settings of the log file. Without a directory, the log is written
// only to the console.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "localhost:8080")
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("scope.enabled", false)
	v.SetDefault("scope.address", "localhost:5051")

	v.SetDefault("telnet.address", "")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "ecg.playback")

	v.SetDefault("playback.dataset", string(ecg.MITBIH))
	v.SetDefault("playback.class", "")
	v.SetDefault("playback.speed", string(playback.NormalSpeed))
	v.SetDefault("playback.beat_length", ecg.DefaultBeatLength)
	v.SetDefault("playback.beats", ecg.DefaultBeatCount)

	v.SetDefault("logging.directory", "")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)
}

// Validate checks the playback settings.
func (c Config) Validate() error {
	var errs []error
	if _, err := ecg.ParseDataset(c.Playback.Dataset); err != nil {
		errs = append(errs, err)
	}
	if _, err := playback.ParseSpeed(c.Playback.Speed); err != nil {
		errs = append(errs, err)
	}
	if c.Playback.BeatLength <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ecg.ErrInvalidBeatLength, c.Playback.BeatLength))
	}
	if c.Playback.Beats <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ecg.ErrInvalidBeatCount, c.Playback.Beats))
	}
	return errors.Join(errs...)
}

// Loader reads the configuration from defaults, an optional configuration file, environment
// variables with the prefix ECGSCOPE_, and bound command line flags.
type Loader struct {
	v     *viper.Viper
	log   *zap.Logger
	delay time.Duration

	configFile string

	mu      sync.Mutex
	current Config
}

func NewLoader(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{
		v:     v,
		log:   log,
		delay: defaultReloadDelay,
	}
}

// SetLogger replaces the logger. The logging setup is part of the configuration, so the
// final logger is only known after the first Load. It must be called before Watch.
func (l *Loader) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	l.log = log
}

// BindFlag makes the given flag override the configuration key if the flag was set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for configuration key %s", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the configuration. Without a filename, config.yaml is searched in the working
// directory; it is fine if it does not exist.
func (l *Loader) Load(filename string) (Config, error) {
	if filename != "" {
		l.v.SetConfigFile(filename)
	} else {
		l.v.AddConfigPath(".")
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if filename != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	l.configFile = l.v.ConfigFileUsed()

	result, err := l.unmarshal()
	if err != nil {
		return Config{}, err
	}
	l.log.Debug("configuration loaded", zap.String("file", l.configFile))
	return result, nil
}

func (l *Loader) unmarshal() (Config, error) {
	var result Config
	if err := l.v.Unmarshal(&result); err != nil {
		return Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := result.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	l.mu.Lock()
	l.current = result
	l.mu.Unlock()
	return result, nil
}

// Current returns the last valid configuration.
func (l *Loader) Current() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// ConfigFile returns the configuration file that was read, empty if there is none.
func (l *Loader) ConfigFile() string {
	return l.configFile
}

// Watch reloads the configuration when the configuration file changes. The file is decoded
// on viper's watcher goroutine, the only one touching viper after Load. Bursts of file events
// are debounced, onChange is called with the latest valid configuration. Invalid configurations
// are logged and ignored.
func (l *Loader) Watch(onChange func(Config)) bool {
	if l.ConfigFile() == "" {
		return false
	}

	debounced := debounce.New(l.delay)
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.log.Info("configuration file changed, reloading", zap.String("file", e.Name))
		if _, err := l.unmarshal(); err != nil {
			l.log.Error("error reloading configuration", zap.Error(err))
			return
		}
		if onChange == nil {
			return
		}
		debounced(func() {
			onChange(l.Current())
		})
	})
	l.v.WatchConfig()
	return true
}
