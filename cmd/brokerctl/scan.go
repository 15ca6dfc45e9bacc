package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/blebroker/internal/broker"
)

var scanTopology string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Request a device and print what the chooser picked",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanTopology, "topology", "", "load this mock topology before scanning")
}

func runScan(cmd *cobra.Command, args []string) error {
	b, cancel, err := startBroker(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if scanTopology != "" {
		if err := loadTopology(b, scanTopology); err != nil {
			return err
		}
	}

	reply := make(chan broker.Reply[broker.DeviceMessage], 1)
	msg, err := send(b, broker.RequestDevice{AcceptAllDevices: true, Reply: reply}, reply)
	if err != nil {
		return err
	}

	name := "(unnamed)"
	if msg.Name != nil {
		name = *msg.Name
	}
	color.New(color.FgCyan).Printf("device %s: %s\n", msg.ID, name)
	return nil
}

func loadTopology(b *broker.Broker, name string) error {
	reply := make(chan broker.Reply[bool], 1)
	_, err := send(b, broker.Test{DataSetName: name, Reply: reply}, reply)
	return err
}
