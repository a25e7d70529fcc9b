package main

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"gfuzz/internal/config"
)

var (
	ConfigFile string
	LogLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gfuzz",
	Short: "gfuzz, selector call graph and reentrancy detection for solidity projects",
	Long:  "",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(ConfigFile)
		if err != nil {
			return err
		}
		if LogLevel != "" {
			cfg.LogLevel = LogLevel
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = Workers
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return cfg.ApplyLogLevel()
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func main() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)

	rootCmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "yaml config file")
	rootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "log level, overrides config")

	rootCmd.AddCommand(versionCommand)
	rootCmd.AddCommand(disassembleCommand)
	rootCmd.AddCommand(selectorsCommand)
	rootCmd.AddCommand(reentrancyCommand)
	rootCmd.AddCommand(serveCommand)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
