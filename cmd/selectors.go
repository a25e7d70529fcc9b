package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"gfuzz/internal/gfuzz"
)

var selectorsCommand = &cobra.Command{
	Use:   "selectors [paths...]",
	Short: "build selector call graph of a project",
	Long:  `paths are solidity files, artifact files or artifact directories`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := selectorsExec(cmd.Context(), args); err != nil {
			fmt.Printf("service err: %v", err)
		}
	},
}

var (
	Workers        int
	Format         string
	TargetFunction string
)

func init() {
	selectorsCommand.Flags().IntVar(&Workers, "workers", 1, "number of contracts analyzed concurrently")
	selectorsCommand.Flags().StringVar(&Format, "format", "json", "output format: json or text")
	selectorsCommand.Flags().StringVar(&TargetFunction, "function", "", "only report fuzz target Contract.method")
}

func selectorsExec(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errors.New("no input paths")
	}
	if Format != "json" && Format != "text" {
		return errors.Errorf("unknown format %s", Format)
	}
	loader := gfuzz.NewLoader(cfg.SolcConfig())
	if err := loader.Load(ctx, paths); err != nil {
		return err
	}
	analyzer := gfuzz.NewAnalyzer(cfg, nil)
	report, pc := analyzer.AnalyzeSelectors(loader.Contracts())
	if TargetFunction != "" {
		target, err := analyzer.Target(pc, TargetFunction)
		if err != nil {
			return err
		}
		report.Targets = []gfuzz.FuzzTarget{target}
	}
	if Format == "text" {
		return report.WriteText(os.Stdout)
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
