/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wayhistory",
	Short: "Stream way segment changes out of a way history database",
	Long: `wayhistory reads the edit history of ways and their ordered segments from a
relational store and writes, for a time window, the segment list of every way as of
its latest version inside that window.

Flags can also be set in a config file (--config) or through environment variables
prefixed with WAYHISTORY_, e.g. WAYHISTORY_PASSWORD.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (yaml, toml or json)",
	)

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"enable development logging",
	)

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
}

func initConfig() {
	viper.SetEnvPrefix("wayhistory")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		cobra.CheckErr(viper.ReadInConfig())
	}
}
