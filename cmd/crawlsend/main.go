package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfigPath = "./config/config.yaml"

// newRootCmd builds the command tree around v. Tests build a fresh tree per
// case so flag state does not leak between them.
func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "crawlsend",
		Short:         "Launch a crawler against a captured HTTP request",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	v.SetDefault("config", defaultConfigPath)

	// Environment variables support: CRAWLSEND_CONFIG, ...
	v.SetEnvPrefix("CRAWLSEND")
	v.AutomaticEnv()
	rootCmd.PersistentFlags().String("config", v.GetString("config"), "path to a config yaml (optional when the default is missing)")
	rootCmd.PersistentFlags().Bool("no-store", false, "do not read settings from or record runs to the store")
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("no_store", rootCmd.PersistentFlags().Lookup("no-store"))

	a := &app{v: v}
	rootCmd.AddCommand(
		a.runCmd(),
		a.serveCmd(),
		a.settingsCmd(),
		a.historyCmd(),
		a.headersCmd(),
		a.doctorCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd(viper.GetViper()).Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
