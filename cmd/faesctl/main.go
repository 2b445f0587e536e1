// Command faesctl is an example CLI over this module's packages, grounded
// on the teacher's cli.RootCmd: a cobra root command with a persistent
// --config flag, viper-backed environment binding, and leaf commands for
// the operations spec.md exposes as external interfaces (append a demo
// event, run or inspect a migration).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "faesctl",
	Short: "inspect and drive an event-sourcing storage runtime",
	Long: `faesctl is an example operator CLI for the event-sourcing storage
runtime: it can append demo events to an in-memory stream and drive or
inspect an in-place stream migration.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.faesctl.yaml)")
	rootCmd.AddCommand(appendCmd, migrateCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".faesctl")
	}

	viper.SetEnvPrefix("FAES")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
