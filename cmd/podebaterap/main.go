package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "podebaterap",
		Short: "AI rap debate orchestrator",
		Long:  "Runs two AI personas through a judged rap debate: alternating text turns, synthesized audio, and a scored verdict that updates persistent win/loss records.",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newSeedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
