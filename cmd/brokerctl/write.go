package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/blebroker/internal/broker"
)

var (
	writeTopology string
	writeService  string
	writeChar     string
	writeHex      string
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Request a device, connect, and write hex bytes to a characteristic",
	RunE:  runWrite,
}

func init() {
	writeCmd.Flags().StringVar(&writeTopology, "topology", "", "load this mock topology first")
	writeCmd.Flags().StringVar(&writeService, "service", "", "primary service UUID")
	writeCmd.Flags().StringVar(&writeChar, "characteristic", "", "characteristic UUID")
	writeCmd.Flags().StringVar(&writeHex, "data", "", "hex-encoded payload")
	_ = writeCmd.MarkFlagRequired("service")
	_ = writeCmd.MarkFlagRequired("characteristic")
	_ = writeCmd.MarkFlagRequired("data")
}

func runWrite(cmd *cobra.Command, args []string) error {
	data, err := hex.DecodeString(writeHex)
	if err != nil {
		return fmt.Errorf("invalid --data: %w", err)
	}

	b, cancel, err := startBroker(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if writeTopology != "" {
		if err := loadTopology(b, writeTopology); err != nil {
			return err
		}
	}

	deviceReply := make(chan broker.Reply[broker.DeviceMessage], 1)
	dev, err := send(b, broker.RequestDevice{
		AcceptAllDevices: true,
		OptionalServices: []string{writeService},
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
	svc, err := send(b, broker.GetPrimaryService{DeviceID: dev.ID, UUID: writeService, Reply: svcReply}, svcReply)
	if err != nil {
		return err
	}

	charReply := make(chan broker.Reply[broker.CharacteristicMessage], 1)
	ch, err := send(b, broker.GetCharacteristic{ServiceID: svc.InstanceID, UUID: writeChar, Reply: charReply}, charReply)
	if err != nil {
		return err
	}

	writeReply := make(chan broker.Reply[bool], 1)
	if _, err := send(b, broker.WriteValue{AttributeID: ch.InstanceID, Value: data, Reply: writeReply}, writeReply); err != nil {
		return err
	}

	fmt.Println("ok")
	return nil
}
