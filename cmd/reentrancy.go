package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"gfuzz/internal/gfuzz"
)

var reentrancyCommand = &cobra.Command{
	Use:   "reentrancy",
	Short: "detect reentrancy in a transaction call tree",
	Long:  ``,
	Run: func(*cobra.Command, []string) {
		if err := reentrancyExec(); err != nil {
			fmt.Printf("service err: %v", err)
		}
	},
}

var (
	TraceFile string
	Nested    bool
	Contract  string
	Function  string
)

func init() {
	reentrancyCommand.Flags().StringVar(&TraceFile, "trace", "-", "call tree file, - for stdin")
	reentrancyCommand.Flags().BoolVar(&Nested, "nested", false, "trace file is a nested json tree")
	reentrancyCommand.Flags().StringVar(&Contract, "contract", "", "contract under test")
	reentrancyCommand.Flags().StringVar(&Function, "function", "", "function under test")
}

func reentrancyExec() error {
	var (
		data []byte
		err  error
	)
	if TraceFile == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(TraceFile)
	}
	if err != nil {
		return errors.Wrap(err, "read trace")
	}
	input := gfuzz.TraceInput{Contract: Contract, Function: Function}
	if Nested {
		input.Nested = data
	} else {
		input.Text = string(data)
	}
	report, err := gfuzz.NewAnalyzer(cfg, nil).AnalyzeTrace(input)
	if err != nil {
		return err
	}
	for _, is := range report.Issues {
		fmt.Fprintln(os.Stderr, is)
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
