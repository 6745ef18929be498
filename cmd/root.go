// Package cmd provides the viaduct command-line interface.
//
// Configuration is resolved from multiple sources with clear precedence:
//
//	1. Command-line flags (--port, --root, ...) - highest priority
//	2. VIADUCT_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (VIADUCT_SERVER_PORT, ...)
//	4. Configuration file (.viaduct.yml) - lowest priority
//
// Environment variables follow the VIADUCT_<SECTION>_<OPTION> pattern, for
// example VIADUCT_SERVER_PORT=8080 or VIADUCT_COMPILER_COMMAND=vuec.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "viaduct",
	Short: "A no-bundle development server for single-file components",
	Long: `Viaduct serves a component project directly to the browser as native ES
modules. Files are compiled on demand and cached per file, so startup cost
does not grow with project size, and edits reach the page through targeted
hot updates instead of rebuilds.

Quick Start:
  viaduct serve                   Start the development server
  viaduct resolve ./src/App.vue   Explain how a path or specifier resolves
  viaduct version                 Show version information`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .viaduct.yml, can also use VIADUCT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	addFlagValidation(rootCmd, "log-level", validateLogLevel)
}

// initConfig wires viper to the config file and environment. A missing or
// unreadable config file is not an error; defaults carry the server.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("VIADUCT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".viaduct")
	}

	viper.SetEnvPrefix("VIADUCT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
