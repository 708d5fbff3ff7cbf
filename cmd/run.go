package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	server "github.com/gregriff/vogo/relay/internal"
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Vogo relay",
	Args:  cobra.NoArgs,
	Run:   runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("host", "", "interface to listen on")
	runCmd.Flags().Int("port", 3001, "port to listen on")
	runCmd.Flags().Bool("debug", false, "log at debug level")
	_ = viper.BindPFlag("host", runCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("port", runCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("debug", runCmd.Flags().Lookup("debug"))
}

func runServer(_ *cobra.Command, _ []string) {
	settings, logger := loadSettings()
	if err := server.CreateAndListen(settings, logger); err != nil {
		fatal(logger, "relay stopped", err)
	}
}
