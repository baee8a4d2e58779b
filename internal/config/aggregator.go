package config

import (
	"fmt"
	"os"
)

// AggregatorConfig is the aggregator process's configuration. Per spec.md
// §6 its MQTT client id is the literal string "client"; only the broker
// address is configurable.
type AggregatorConfig struct {
	BrokerHost string
	BrokerPort int
}

// LoadAggregatorConfig reads BROKER_HOST (default "localhost"), mirroring
// the sensor node's env-first convention; the broker port is always 1883.
// The aggregator has no per-instance tuning knobs, so no YAML file is
// consulted.
func LoadAggregatorConfig() (AggregatorConfig, error) {
	c := AggregatorConfig{
		BrokerHost: os.Getenv("BROKER_HOST"),
		BrokerPort: 1883,
	}
	if c.BrokerHost == "" {
		c.BrokerHost = "localhost"
	}
	return c, nil
}

// ClientID is the MQTT client id for the aggregator, per spec.md §6.
func (c AggregatorConfig) ClientID() string { return "client" }

// BrokerURI is the tcp:// broker address the aggregator connects to.
func (c AggregatorConfig) BrokerURI() string {
	return fmt.Sprintf("tcp://%s:%d", c.BrokerHost, c.BrokerPort)
}
