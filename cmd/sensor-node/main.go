// Command sensor-node runs a single lap-timing gate: it reads distances off
// a sensor (hardware TF-Luna, or a mock when none is configured), debounces
// vehicle passes, and publishes Detection events to the broker per spec §4.E.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/timebay/timebay/internal/config"
	"github.com/timebay/timebay/internal/distsensor"
	"github.com/timebay/timebay/internal/sensornode"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.LoadNodeConfig()
	if err != nil {
		log.Fatalf("sensor-node: config: %v", err)
	}

	sensor, closeSensor, err := openSensor(cfg)
	if err != nil {
		log.Fatalf("sensor-node: %v", err)
	}
	defer closeSensor()

	log.Printf("sensor-node: node_id=%d broker=%s", cfg.NodeID, cfg.BrokerURI())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		log.Printf("sensor-node: shutting down, signal=%v", sig)
		cancel()
	}()

	if err := sensornode.Run(ctx, cfg, sensor); err != nil && ctx.Err() == nil {
		log.Fatalf("sensor-node: run: %v", err)
	}
}

// openSensor picks a TFLuna if a serial device is configured, otherwise a
// MockDistanceReader bounded around the configured default zero — so the
// node runs out of the box against a simulated field without hardware.
func openSensor(cfg config.NodeConfig) (distsensor.DistanceSensor, func(), error) {
	if cfg.Serial.Device != nil && *cfg.Serial.Device != "" {
		tf, err := distsensor.OpenTFLuna(*cfg.Serial.Device)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("sensor-node: using TF-Luna on %s", *cfg.Serial.Device)
		return tf, func() { _ = tf.Close() }, nil
	}

	zero := *cfg.Trigger.DefaultZeroMM
	mock := distsensor.NewMockDistanceReader(zero/2, zero+zero/2)
	log.Printf("sensor-node: no serial.device configured, using mock sensor")
	return mock, func() {}, nil
}
