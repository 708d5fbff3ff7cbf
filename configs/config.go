// Package configs reads the relay's TOML config, lets VOGO_RELAY_* env vars
// override it and decodes the result into Settings.
package configs

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "embed"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const appName = "vogo-relay"

//go:embed vogo-relay.toml
var defaultConfigFile []byte

// every key is registered so AutomaticEnv reaches Unmarshal even when the
// file leaves the key out
var defaults = map[string]any{
	"host":                        "",
	"port":                        defaultPort,
	"debug":                       false,
	"default-capacity":            defaultCapacity,
	"allowed-origins":             []string{},
	"log.level":                   "info",
	"log.format":                  "text",
	"store.driver":                StoreSQLite,
	"store.path":                  "",
	"signaling.send-queue":        defaultSendQueue,
	"signaling.max-message-bytes": defaultMaxMessageBytes,
}

// InitConfig points v at file, writing the embedded default config there when
// the file does not exist yet.
func InitConfig(v *viper.Viper, file string) error {
	if file == "" {
		return errors.New("no config file given")
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigType("toml")
	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(file)

	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadConfig(bytes.NewReader(defaultConfigFile)); err != nil {
			return fmt.Errorf("error reading embedded default config: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
		if err := os.WriteFile(file, defaultConfigFile, 0o600); err != nil {
			return fmt.Errorf("error writing default config: %w", err)
		}
		slog.Info("wrote default config", "file", file)
		return nil
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// ConfigDir is $XDG_CONFIG_HOME/vogo-relay. macOS uses ~/.config rather than
// Application Support unless XDG_CONFIG_HOME is set.
func ConfigDir() string {
	base := xdg.ConfigHome
	if os.Getenv("XDG_CONFIG_HOME") == "" && runtime.GOOS == "darwin" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, appName)
}
