package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"gfuzz/internal/gfuzz"
)

var disassembleCommand = &cobra.Command{
	Use:   "disassemble",
	Short: "disassemble file and print easm",
	Long:  ``,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := disassemble(cmd.Context()); err != nil {
			fmt.Printf("service err: %v", err)
		} else {
			fmt.Printf("service quit")
		}
	},
}

var (
	SolidityFile string
	Bytecode     string
)

func init() {
	disassembleCommand.Flags().StringVar(&SolidityFile, "file", "", "solidity file or artifact to disassemble")
	disassembleCommand.Flags().StringVar(&Bytecode, "bytecode", "", "runtime bytecode in hex")
}

func disassemble(ctx context.Context) error {
	loader := gfuzz.NewLoader(cfg.SolcConfig())
	var err error
	switch {
	case Bytecode != "":
		err = loader.LoadFromBytecode("bytecode", Bytecode)
	case SolidityFile != "":
		err = loader.Load(ctx, []string{SolidityFile})
	default:
		return errors.New("--file or --bytecode required")
	}
	if err != nil {
		return err
	}
	for _, c := range loader.GetContracts() {
		fmt.Printf("Contract %s\n", c.Name)
		fmt.Println("Disassembled runtime code:")
		fmt.Println(c.GetEASM())
		if c.CreationCode != "" {
			fmt.Println("Disassembled creation code:")
			fmt.Println(c.GetCreationEASM())
		}
	}
	return nil
}
