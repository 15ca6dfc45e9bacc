package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blebroker/internal/adapter"
	"github.com/srg/blebroker/internal/adapter/mock"
	"github.com/srg/blebroker/pkg/config"
)

const (
	genericAccessUUID = "00001800-0000-1000-8000-00805f9b34fb"
	heartRateUUID     = "0000180d-0000-1000-8000-00805f9b34fb"
	deviceNameUUID    = "00002a00-0000-1000-8000-00805f9b34fb"
)

// BrokerSuite exercises the broker's end-to-end request/reply scenarios,
// driving a real Broker through its Test harness and request channel
// rather than poking the cache or handlers directly.
type BrokerSuite struct {
	suite.Suite
	b      *Broker
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *BrokerSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	cfg := config.DefaultConfig()
	logger := cfg.NewLogger()
	factory := func() adapter.Adapter { return mock.New() }
	s.b = New(cfg, logger, factory, AutoFirstChooser{})
	go s.b.Run(s.ctx)
}

func (s *BrokerSuite) TearDownTest() {
	s.cancel()
}

func (s *BrokerSuite) loadTopology(name string) {
	reply := make(chan Reply[bool], 1)
	s.b.Requests() <- Test{DataSetName: name, Reply: reply}
	r := <-reply
	require.NoError(s.T(), r.Err)
}

func (s *BrokerSuite) requestDevice(req RequestDevice) Reply[DeviceMessage] {
	reply := make(chan Reply[DeviceMessage], 1)
	req.Reply = reply
	s.b.Requests() <- req
	return <-reply
}

func (s *BrokerSuite) connect(deviceID string) Reply[bool] {
	reply := make(chan Reply[bool], 1)
	s.b.Requests() <- GATTServerConnect{DeviceID: deviceID, Reply: reply}
	return <-reply
}

func (s *BrokerSuite) getPrimaryService(deviceID, uuid string) Reply[ServiceMessage] {
	reply := make(chan Reply[ServiceMessage], 1)
	s.b.Requests() <- GetPrimaryService{DeviceID: deviceID, UUID: uuid, Reply: reply}
	return <-reply
}

func (s *BrokerSuite) getCharacteristic(serviceID, uuid string) Reply[CharacteristicMessage] {
	reply := make(chan Reply[CharacteristicMessage], 1)
	s.b.Requests() <- GetCharacteristic{ServiceID: serviceID, UUID: uuid, Reply: reply}
	return <-reply
}

func (s *BrokerSuite) readValue(attributeID string) Reply[[]byte] {
	reply := make(chan Reply[[]byte], 1)
	s.b.Requests() <- ReadValue{AttributeID: attributeID, Reply: reply}
	return <-reply
}

// TestEmptyAdapterRejectsRequestDevice covers scenario 1: no candidates at
// all means NotFound even with AcceptAllDevices set.
func (s *BrokerSuite) TestEmptyAdapterRejectsRequestDevice() {
	s.loadTopology("EmptyAdapter")
	reply := s.requestDevice(RequestDevice{AcceptAllDevices: true})
	s.Require().Error(reply.Err)
	s.ErrorIs(reply.Err, ErrNotFound)
}

// TestGlucoseHeartRateAdapterFiltersByService covers scenario 2: a filter
// naming the heart rate service selects the Heart Rate Device only.
func (s *BrokerSuite) TestGlucoseHeartRateAdapterFiltersByService() {
	s.loadTopology("GlucoseHeartRateAdapter")
	reply := s.requestDevice(RequestDevice{Filters: []ScanFilter{{Services: []string{heartRateUUID}}}})
	s.Require().NoError(reply.Err)
	s.Require().NotNil(reply.Value.Name)
	s.Equal("Heart Rate Device", *reply.Value.Name)
}

// TestGlucoseHeartRateAdapterDeniesUngrantedService covers scenario 3: a
// service outside the accepted filter's set is refused with Security.
func (s *BrokerSuite) TestGlucoseHeartRateAdapterDeniesUngrantedService() {
	s.loadTopology("GlucoseHeartRateAdapter")
	device := s.requestDevice(RequestDevice{Filters: []ScanFilter{{Services: []string{heartRateUUID}}}})
	s.Require().NoError(device.Err)

	reply := s.getPrimaryService(device.Value.ID, genericAccessUUID)
	s.Require().Error(reply.Err)
	s.ErrorIs(reply.Err, ErrSecurity)
}

// TestGlucoseHeartRateAdapterGrantsFilteredService covers scenario 4: the
// granted service resolves to a primary GATT service.
func (s *BrokerSuite) TestGlucoseHeartRateAdapterGrantsFilteredService() {
	s.loadTopology("GlucoseHeartRateAdapter")
	device := s.requestDevice(RequestDevice{Filters: []ScanFilter{{Services: []string{heartRateUUID}}}})
	s.Require().NoError(device.Err)

	reply := s.getPrimaryService(device.Value.ID, heartRateUUID)
	s.Require().NoError(reply.Err)
	s.True(reply.Value.IsPrimary)
	s.Equal(heartRateUUID, reply.Value.UUID)
}

// TestNotPoweredAdapterBlocksAllRequests covers scenario 5: the adapter
// gate rejects every GATT-touching request before it reaches a handler.
func (s *BrokerSuite) TestNotPoweredAdapterBlocksAllRequests() {
	s.loadTopology("NotPoweredAdapter")
	reply := s.requestDevice(RequestDevice{AcceptAllDevices: true})
	s.Require().Error(reply.Err)
	s.ErrorIs(reply.Err, ErrAdapterNotPowered)

	connectReply := s.connect("unknown-device")
	s.Require().Error(connectReply.Err)
	s.ErrorIs(connectReply.Err, ErrAdapterNotPowered)

	serviceReply := s.getPrimaryService("unknown-device", heartRateUUID)
	s.Require().Error(serviceReply.Err)
	s.ErrorIs(serviceReply.Err, ErrAdapterNotPowered)
}

// TestCompletedAdapterConnectAndReadDeviceName covers scenario 6: connect
// then read the device-name characteristic's known value.
func (s *BrokerSuite) TestCompletedAdapterConnectAndReadDeviceName() {
	s.loadTopology("CompletedAdapter")
	device := s.requestDevice(RequestDevice{Filters: []ScanFilter{{Services: []string{genericAccessUUID}}}})
	s.Require().NoError(device.Err)

	connectReply := s.connect(device.Value.ID)
	s.Require().NoError(connectReply.Err)
	s.True(connectReply.Value)

	service := s.getPrimaryService(device.Value.ID, genericAccessUUID)
	s.Require().NoError(service.Err)

	char := s.getCharacteristic(service.Value.InstanceID, deviceNameUUID)
	s.Require().NoError(char.Err)

	value := s.readValue(char.Value.InstanceID)
	s.Require().NoError(value.Err)
	s.Equal([]byte{9}, value.Value)
}

// TestRequestDeviceIDsAreUnique covers invariant 2: two distinct discovered
// addresses never collide on the same minted device id.
func (s *BrokerSuite) TestRequestDeviceIDsAreUnique() {
	s.loadTopology("GlucoseHeartRateAdapter")

	glucose := s.requestDevice(RequestDevice{Filters: []ScanFilter{{Name: "Glucose Device"}}})
	s.Require().NoError(glucose.Err)
	heartRate := s.requestDevice(RequestDevice{Filters: []ScanFilter{{Name: "Heart Rate Device"}}})
	s.Require().NoError(heartRate.Err)

	s.NotEqual(glucose.Value.ID, heartRate.Value.ID)
}

func TestBrokerSuite(t *testing.T) {
	suite.Run(t, new(BrokerSuite))
}

func TestRunStopsOnExit(t *testing.T) {
	cfg := config.DefaultConfig()
	logger := cfg.NewLogger()
	b := New(cfg, logger, func() adapter.Adapter { return mock.New() }, nil)

	done := make(chan struct{})
	go func() {
		b.Run(context.Background())
		close(done)
	}()

	b.Requests() <- Exit{}
	<-done
}
