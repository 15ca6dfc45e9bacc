package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/blebroker/internal/broker"
)

var connectTopology string

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Request a device then connect to it",
	RunE:  runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectTopology, "topology", "", "load this mock topology before connecting")
}

func runConnect(cmd *cobra.Command, args []string) error {
	b, cancel, err := startBroker(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if connectTopology != "" {
		if err := loadTopology(b, connectTopology); err != nil {
			return err
		}
	}

	deviceReply := make(chan broker.Reply[broker.DeviceMessage], 1)
	dev, err := send(b, broker.RequestDevice{AcceptAllDevices: true, Reply: deviceReply}, deviceReply)
	if err != nil {
		return err
	}

	connectReply := make(chan broker.Reply[bool], 1)
	if _, err := send(b, broker.GATTServerConnect{DeviceID: dev.ID, Reply: connectReply}, connectReply); err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("connected to %s\n", dev.ID)
	return nil
}
