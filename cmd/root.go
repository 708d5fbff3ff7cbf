// Package cmd contains the CLI setup and commands exposed to the user
package cmd

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gregriff/vogo/relay/configs"
)

var ConfigFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vogo-relay",
	Short: "Tracks who is in which voice channel and relays WebRTC signaling between Vogo clients",
	Long:  ``,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal(err.Error())
	}
}

func init() {
	// deferring this allows user to override config path with cli option
	cobra.OnInitialize(func() {
		if err := configs.InitConfig(viper.GetViper(), ConfigFile); err != nil {
			log.Fatal(err)
		}
	})

	defaultConfigFilePath := filepath.Join(configs.ConfigDir(), "vogo-relay.toml")
	rootCmd.PersistentFlags().StringVar(&ConfigFile, "config", defaultConfigFilePath, "config file")
}

// loadSettings decodes the config and installs the configured logger as the slog default.
func loadSettings() (configs.Settings, *slog.Logger) {
	settings, err := configs.Load(viper.GetViper())
	if err != nil {
		log.Fatalf("invalid config (%s): %v", ConfigFile, err)
	}
	logger, err := configs.NewLogger(settings.Log, os.Stderr)
	if err != nil {
		log.Fatalf("error configuring logger: %v", err)
	}
	slog.SetDefault(logger)
	logger.Debug("config loaded", "file", ConfigFile)
	return settings, logger
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
