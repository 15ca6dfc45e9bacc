package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/blebroker/internal/broker"
)

var testCmd = &cobra.Command{
	Use:   "test <topology>",
	Short: "Load a named mock topology into a fresh broker",
	Long: fmt.Sprintf("Recognized topologies:\n  %s", strings.Join(knownTopologies(), "\n  ")),
	Args:  cobra.ExactArgs(1),
	RunE:  runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	b, cancel, err := startBroker(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	reply := make(chan broker.Reply[bool], 1)
	if _, err := send(b, broker.Test{DataSetName: args[0], Reply: reply}, reply); err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("loaded topology %q\n", args[0])
	return nil
}
