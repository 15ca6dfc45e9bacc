// Package fixtures holds the named mock adapter topologies used by the
// broker's scripted Test request. They are data, not code: adding a
// topology is a YAML edit rather than a new hardcoded match arm.
package fixtures

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed topologies.yaml
var topologiesYAML []byte

// DescriptorConfig configures one mock GATT descriptor.
type DescriptorConfig struct {
	UUID  string `yaml:"uuid"`
	Value []byte `yaml:"value,omitempty"`
}

// CharacteristicConfig configures one mock GATT characteristic.
type CharacteristicConfig struct {
	UUID        string             `yaml:"uuid"`
	Properties  []string           `yaml:"properties,omitempty"`
	Value       []byte             `yaml:"value,omitempty"`
	Descriptors []DescriptorConfig `yaml:"descriptors,omitempty"`
}

// ServiceConfig configures one mock primary GATT service.
type ServiceConfig struct {
	UUID            string                 `yaml:"uuid"`
	Characteristics []CharacteristicConfig `yaml:"characteristics,omitempty"`
}

// DeviceConfig configures one mock advertised/discoverable device.
type DeviceConfig struct {
	Address     string          `yaml:"address"`
	Name        string          `yaml:"name"`
	Connectable bool            `yaml:"connectable"`
	UUIDs       []string        `yaml:"uuids,omitempty"`
	Services    []ServiceConfig `yaml:"services,omitempty"`
}

// AdapterConfig is the full mock adapter state a named topology builds.
//
// Present defaults to true: a topology only sets it to false to model the
// "Bluetooth adapter entirely absent" case (NotPresentAdapter), so it can't
// be driven by a go-defaults zero-value tag the way the other ambient
// defaults are (a struct tag default can't tell an explicit false in the
// document apart from an omitted key). Instead each entry starts from a
// pre-populated AdapterConfig and is decoded into with yaml.Node.Decode,
// which only touches the fields the document actually names.
type AdapterConfig struct {
	Name                string         `yaml:"name"`
	Present             bool           `yaml:"present"`
	Powered             bool           `yaml:"powered"`
	Discoverable        bool           `yaml:"discoverable"`
	DiscoveryStartError bool           `yaml:"discovery_start_error"`
	Devices             []DeviceConfig `yaml:"devices,omitempty"`
}

var topologies map[string]AdapterConfig

func init() {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(topologiesYAML, &raw); err != nil {
		panic(fmt.Sprintf("fixtures: invalid embedded topologies.yaml: %v", err))
	}
	topologies = make(map[string]AdapterConfig, len(raw))
	for name, node := range raw {
		cfg := AdapterConfig{Present: true}
		n := node
		if err := n.Decode(&cfg); err != nil {
			panic(fmt.Sprintf("fixtures: invalid topology %q: %v", name, err))
		}
		topologies[name] = cfg
	}
}

// ErrUnknownTopology is returned by Lookup when the name is not one of the
// recognized test data-set names.
var ErrUnknownTopology = fmt.Errorf("unknown test data-set name")

// Lookup returns the named topology's configuration, or ErrUnknownTopology.
func Lookup(name string) (AdapterConfig, error) {
	cfg, ok := topologies[name]
	if !ok {
		return AdapterConfig{}, ErrUnknownTopology
	}
	return cfg, nil
}

// Names returns every recognized topology name, for CLI help text and tests.
func Names() []string {
	names := make([]string, 0, len(topologies))
	for name := range topologies {
		names = append(names, name)
	}
	return names
}
