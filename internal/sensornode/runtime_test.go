package sensornode

import (
	"context"
	"testing"

	"github.com/timebay/timebay/internal/distsensor"
	"github.com/timebay/timebay/internal/messages"
	"github.com/timebay/timebay/internal/mqttclient"
	"github.com/timebay/timebay/internal/trigger"
)

func TestHandleRecvErrorClassification(t *testing.T) {
	cases := []struct {
		name            string
		err             error
		wantDisconnected bool
	}{
		{"connection error", mqttclient.ErrConnection, true},
		{"explicit disconnect", mqttclient.ErrExplicitDisconnect, true},
		{"serialization error", mqttclient.ErrSerialization, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := handleRecvError(c.err)
			if got != c.wantDisconnected {
				t.Errorf("handleRecvError(%v) = %v, want %v", c.err, got, c.wantDisconnected)
			}
		})
	}
}

func TestHandleInboundMessageZeroRunsZeroRoutine(t *testing.T) {
	q := &constSensor{v: 50}
	det := trigger.New(q, trigger.Config{DefaultZeroMM: 1000, ThresholdMM: 1})

	handleInboundMessage(context.Background(), det, messages.NewZero())

	if q.reads != 100 {
		t.Errorf("sensor read %d times, want 100 (the zero routine)", q.reads)
	}
}

func TestHandleInboundMessageWrongSubIsIgnored(t *testing.T) {
	q := &constSensor{v: 50}
	det := trigger.New(q, trigger.Config{DefaultZeroMM: 1000, ThresholdMM: 1})

	// A Connection message on the inbound stream is a protocol error for a
	// sensor node; it must not touch the detector's calibration.
	handleInboundMessage(context.Background(), det, messages.NewConnection(1))

	if q.reads != 0 {
		t.Errorf("sensor read %d times, want 0 (no zero routine triggered)", q.reads)
	}
}

type constSensor struct {
	v     uint32
	reads int
}

func (c *constSensor) GetReading(ctx context.Context) (distsensor.DistanceReading, error) {
	c.reads++
	return distsensor.DistanceReading{DistMM: c.v}, nil
}
