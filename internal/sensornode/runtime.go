// Package sensornode implements the per-node control loop of spec §4.E,
// composing the distance reader (4.A), trigger detector (4.B), message
// codec (4.C), and pub/sub client (4.D).
package sensornode

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/timebay/timebay/internal/config"
	"github.com/timebay/timebay/internal/distsensor"
	"github.com/timebay/timebay/internal/messages"
	"github.com/timebay/timebay/internal/mqttclient"
	"github.com/timebay/timebay/internal/trigger"
)

const (
	heartbeatInterval = 3 * time.Second
	initialBackoff    = 1500 * time.Millisecond
	reconnectBackoff  = 1500 * time.Millisecond
)

// Run drives the sensor node's main loop until ctx is cancelled. sensor is
// injected so callers can swap a MockDistanceReader in for a TFLuna (spec
// §9's "dynamic dispatch" design note: the reader choice is fixed at
// startup, so plain composition over a capability interface, not boxed
// dispatch across the loop's lifetime).
func Run(ctx context.Context, cfg config.NodeConfig, sensor distsensor.DistanceSensor) error {
	det := trigger.New(sensor, trigger.Config{
		DefaultZeroMM: *cfg.Trigger.DefaultZeroMM,
		ThresholdMM:   *cfg.Trigger.ThresholdMM,
		DebounceMS:    *cfg.Trigger.DebounceMS,
	})

	client, err := connectWithRetry(ctx, cfg)
	if err != nil {
		return err
	}

	if _, err := retryZero(ctx, det); err != nil {
		return err
	}

	disconnected := false
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if disconnected {
			if err := reconnectWithRetry(ctx, client); err != nil {
				return err
			}
			disconnected = false
		}

		if err := client.Publish(messages.NewConnection(cfg.NodeID)); err != nil {
			log.Printf("sensornode: heartbeat publish failed: %v", err)
			disconnected = true
			continue
		}

		iterCtx, cancel := context.WithCancel(ctx)

		type recvResult struct {
			msg messages.Message
			err error
		}
		msgCh := make(chan recvResult, 1)
		go func() {
			m, err := client.Recv(iterCtx)
			msgCh <- recvResult{m, err}
		}()

		type trigResult struct {
			reading distsensor.DistanceReading
			err     error
		}
		trigCh := make(chan trigResult, 1)
		go func() {
			r, err := det.NextTrigger(iterCtx)
			trigCh <- trigResult{r, err}
		}()

		timer := time.NewTimer(heartbeatInterval)

		select {
		case res := <-msgCh:
			timer.Stop()
			cancel()
			// Wait for the cancelled NextTrigger so the sensor is never read
			// concurrently (by the Zero routine or the next iteration).
			<-trigCh
			if res.err != nil {
				disconnected = handleRecvError(res.err)
			} else {
				handleInboundMessage(ctx, det, res.msg)
			}

		case res := <-trigCh:
			timer.Stop()
			cancel()
			if res.err != nil {
				log.Printf("sensornode: sensor read error: %v", res.err)
				continue
			}
			now := time.Now()
			detMsg := messages.NewDetection(cfg.NodeID, res.reading.DistMM, uint64(now.Unix()), uint32(now.Nanosecond()))
			if err := client.Publish(detMsg); err != nil {
				log.Printf("sensornode: detection publish failed: %v", err)
				disconnected = true
			}

		case <-timer.C:
			cancel()
			<-trigCh
			// Idle timeout: loop back around to re-publish the heartbeat.
		}
	}
}

// handleRecvError classifies a Recv error per spec §4.E step 4 and returns
// whether the node should now be considered disconnected.
func handleRecvError(err error) bool {
	switch {
	case errors.Is(err, mqttclient.ErrConnection), errors.Is(err, mqttclient.ErrExplicitDisconnect):
		log.Printf("sensornode: broker error: %v", err)
		return true
	case errors.Is(err, mqttclient.ErrSerialization):
		log.Printf("sensornode: dropping malformed message: %v", err)
		return false
	default:
		// context cancellation from the losing-branch cleanup; not a real error.
		return false
	}
}

// handleInboundMessage dispatches an inbound message by variant. Only Zero
// is a legal inbound variant for a sensor node; anything else is a protocol
// error, logged and otherwise ignored.
func handleInboundMessage(ctx context.Context, det *trigger.Detector, msg messages.Message) {
	switch msg.Kind {
	case messages.KindZero:
		if _, err := det.Zero(ctx); err != nil {
			log.Printf("sensornode: zero routine failed: %v", err)
		}
	default:
		log.Printf("sensornode: wrong-sub: unexpected message kind %v on inbound topic", msg.Kind)
	}
}

func connectWithRetry(ctx context.Context, cfg config.NodeConfig) (*mqttclient.Client, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client, err := mqttclient.Connect(ctx, cfg.BrokerURI(), cfg.ClientID(), cfg.NodeID,
			[]messages.Kind{messages.KindZero}, mqttclient.Options{RegisterLWT: true})
		if err == nil {
			return client, nil
		}
		log.Printf("sensornode: connect failed, retrying: %v", err)
		if !sleepOrDone(ctx, initialBackoff) {
			return nil, ctx.Err()
		}
	}
}

func reconnectWithRetry(ctx context.Context, client *mqttclient.Client) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := client.Reconnect(ctx); err == nil {
			return nil
		} else {
			log.Printf("sensornode: reconnect failed, retrying: %v", err)
		}
		if !sleepOrDone(ctx, reconnectBackoff) {
			return ctx.Err()
		}
	}
}

func retryZero(ctx context.Context, det *trigger.Detector) (uint32, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		zero, err := det.Zero(ctx)
		if err == nil {
			return zero, nil
		}
		log.Printf("sensornode: zero routine failed, retrying: %v", err)
		if !sleepOrDone(ctx, initialBackoff) {
			return 0, ctx.Err()
		}
	}
}

// sleepOrDone sleeps for d, returning false early if ctx is cancelled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
