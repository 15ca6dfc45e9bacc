// Command brokerctl drives a broker.Broker over its request channel the
// way an integration test would: it is a manual-testing and
// demonstration harness for the broker's wire contract, not the scripting
// collaborator the broker is designed to sit behind.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "brokerctl",
	Short: "Drive a GATT broker over its request channel",
	Long: `brokerctl opens a broker.Broker backed by the in-memory mock adapter
(optionally loaded with a named test topology), then sends requests across
the broker's channel and prints the replies. The production go-ble adapter
is not wired into brokerctl.

It exists to exercise the broker end-to-end without a browser or a
scripting runtime attached.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(testCmd)
}
