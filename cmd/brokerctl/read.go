package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/blebroker/internal/broker"
)

var (
	readTopology string
	readService  string
	readChar     string
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Request a device, connect, and read a characteristic's value",
	RunE:  runRead,
}

func init() {
	readCmd.Flags().StringVar(&readTopology, "topology", "", "load this mock topology first")
	readCmd.Flags().StringVar(&readService, "service", "", "primary service UUID")
	readCmd.Flags().StringVar(&readChar, "characteristic", "", "characteristic UUID")
	_ = readCmd.MarkFlagRequired("service")
	_ = readCmd.MarkFlagRequired("characteristic")
}

func runRead(cmd *cobra.Command, args []string) error {
	b, cancel, err := startBroker(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if readTopology != "" {
		if err := loadTopology(b, readTopology); err != nil {
			return err
		}
	}

	deviceReply := make(chan broker.Reply[broker.DeviceMessage], 1)
	dev, err := send(b, broker.RequestDevice{
		AcceptAllDevices: true,
		OptionalServices: []string{readService},
		Reply:            deviceReply,
	}, deviceReply)
	if err != nil {
		return err
	}

	connectReply := make(chan broker.Reply[bool], 1)
	if _, err := send(b, broker.GATTServerConnect{DeviceID: dev.ID, Reply: connectReply}, connectReply); err != nil {
		return err
	}

	svcReply := make(chan broker.Reply[broker.ServiceMessage], 1)
	svc, err := send(b, broker.GetPrimaryService{DeviceID: dev.ID, UUID: readService, Reply: svcReply}, svcReply)
	if err != nil {
		return err
	}

	charReply := make(chan broker.Reply[broker.CharacteristicMessage], 1)
	ch, err := send(b, broker.GetCharacteristic{ServiceID: svc.InstanceID, UUID: readChar, Reply: charReply}, charReply)
	if err != nil {
		return err
	}

	valueReply := make(chan broker.Reply[[]byte], 1)
	value, err := send(b, broker.ReadValue{AttributeID: ch.InstanceID, Reply: valueReply}, valueReply)
	if err != nil {
		return err
	}

	fmt.Printf("%x\n", value)
	return nil
}
