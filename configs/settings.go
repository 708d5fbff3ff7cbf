package configs

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/gregriff/vogo/relay/internal/origin"
)

// Store drivers understood by store.Open.
const (
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
	StoreMemory = "memory"
)

const (
	defaultPort            = 3001
	defaultCapacity        = 6
	defaultSendQueue       = 64
	defaultMaxMessageBytes = 64 << 10
)

// Settings is the typed view of the viper configuration used by the run command.
type Settings struct {
	Host            string              `mapstructure:"host"`
	Port            int                 `mapstructure:"port"`
	Debug           bool                `mapstructure:"debug"`
	DefaultCapacity int                 `mapstructure:"default-capacity"`
	AllowedOrigins  []string            `mapstructure:"allowed-origins"`
	Log             LogSettings         `mapstructure:"log"`
	Store           StoreSettings       `mapstructure:"store"`
	Signaling       SignalingSettings   `mapstructure:"signaling"`
	ICEServers      []ICEServerSettings `mapstructure:"ice-servers"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreSettings struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type SignalingSettings struct {
	SendQueue       int   `mapstructure:"send-queue"`
	MaxMessageBytes int64 `mapstructure:"max-message-bytes"`
}

// Load decodes v into Settings, fills defaults and validates the result.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("error decoding config: %w", err)
	}
	s.applyDefaults()
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.Port == 0 {
		s.Port = defaultPort
	}
	if s.DefaultCapacity <= 0 {
		s.DefaultCapacity = defaultCapacity
	}
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "text"
	}
	if s.Store.Driver == "" {
		s.Store.Driver = StoreSQLite
	}
	if s.Signaling.SendQueue <= 0 {
		s.Signaling.SendQueue = defaultSendQueue
	}
	if s.Signaling.MaxMessageBytes <= 0 {
		s.Signaling.MaxMessageBytes = defaultMaxMessageBytes
	}
	if s.Debug {
		s.Log.Level = "debug"
	}
}

func (s *Settings) validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}

	switch s.Store.Driver {
	case StoreSQLite, StoreBadger, StoreMemory:
	default:
		return fmt.Errorf("unsupported store driver %q", s.Store.Driver)
	}

	normalized := make([]string, 0, len(s.AllowedOrigins))
	for _, raw := range s.AllowedOrigins {
		raw = strings.TrimSpace(raw)
		if raw == "*" {
			normalized = append(normalized, raw)
			continue
		}
		o, _, ok := origin.NormalizeHeader(raw)
		if !ok || o == "null" {
			return fmt.Errorf("invalid allowed origin %q", raw)
		}
		normalized = append(normalized, o)
	}
	s.AllowedOrigins = normalized

	if _, err := ParseLevel(s.Log.Level); err != nil {
		return err
	}
	if _, err := s.ICE(); err != nil {
		return err
	}
	return nil
}

// Addr is the listen address of the http server.
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorePath resolves where the channel registry is persisted. Drivers that
// need a location default to the XDG data directory.
func (s Settings) StorePath() (string, error) {
	if s.Store.Path != "" {
		return s.Store.Path, nil
	}
	switch s.Store.Driver {
	case StoreSQLite:
		return xdg.DataFile(filepath.Join(appName, appName+".sqlite"))
	case StoreBadger:
		dir, err := xdg.DataFile(filepath.Join(appName, "badger", "MANIFEST"))
		if err != nil {
			return "", err
		}
		return filepath.Dir(dir), nil
	case StoreMemory:
		return "", nil
	}
	return "", errors.New("unknown store driver")
}
