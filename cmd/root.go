/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fitzone/zoned/params"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zoned",
	Short: "Track activities, capture zones, level up",
	Long: `zoned tracks walks, runs and rides from device location fixes.

Finished activities earn XP, capture the map cells they cover,
and roll up into lifetime stats.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.zoned.yaml)")
	pFlags.String("datadir", params.DefaultDatadirRoot, "Root directory for zoned data")
	pFlags.String("log-level", "info", "Log level: debug, info, warn, error")
	_ = viper.BindPFlag("datadir", pFlags.Lookup("datadir"))
	_ = viper.BindPFlag("log-level", pFlags.Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".zoned")
	}

	viper.SetEnvPrefix("ZONED")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaultSlog installs a stderr text logger at the configured level,
// tagged with the running command.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		fmt.Fprintln(os.Stderr, "Invalid log level, using info:", err)
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler).With("cmd", cmd.Name()))
	slog.Debug("Logger ready", "level", level, "args", args)
}

var envKeyReplacer = strings.NewReplacer("-", "_", ".", "_")
