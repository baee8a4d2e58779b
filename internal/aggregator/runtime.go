package aggregator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/timebay/timebay/internal/config"
	"github.com/timebay/timebay/internal/messages"
	"github.com/timebay/timebay/internal/mqttclient"
)

const reconnectBackoff = 1500 * time.Millisecond

// Run drives the aggregator: a connect-with-retry bring-up, then the
// merger loop of spec §5's three aggregator task roles. The broker-link
// task (recvLoop) and the UI-command forwarder (forwardCommands, relaying
// cmds, owned by the caller — cmd/aggregator wires a stdin reader to it)
// run as their own goroutines and feed a single channel; this function is
// the merger that reads it. onLapComplete is invoked synchronously from
// the merger loop whenever a Detection completes the current lap.
func Run(ctx context.Context, cfg config.AggregatorConfig, cmds <-chan AppMessage, onLapComplete func(*LapCompletion)) error {
	client, err := connectWithRetry(ctx, cfg)
	if err != nil {
		return err
	}

	state := NewState()
	state.Update(NewStateChange(Connected()))

	ch := make(chan AppMessage, 64)
	go recvLoop(ctx, client, ch)
	go forwardCommands(ctx, cmds, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-ch:
			if msg.Kind == MsgSendZero {
				go sendZero(ctx, client, ch)
				continue
			}

			completion := state.Update(msg)
			if completion != nil && onLapComplete != nil {
				onLapComplete(completion)
			}
			if msg.Kind == MsgStateChange && msg.Link.IsReconnecting() {
				go reconnectLoop(ctx, client, ch)
			}
		}
	}
}

func forwardCommands(ctx context.Context, cmds <-chan AppMessage, out chan<- AppMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			out <- cmd
		}
	}
}

// sendZero performs the SendZero command's side effect: publish Zero, and
// report back ZeroAck on success or a Reconnecting transition on failure,
// per spec §4.G.
func sendZero(ctx context.Context, client *mqttclient.Client, ch chan<- AppMessage) {
	if err := client.Publish(messages.NewZero()); err != nil {
		log.Printf("aggregator: zero publish failed: %v", err)
		select {
		case ch <- NewStateChange(Reconnecting()):
		case <-ctx.Done():
		}
		return
	}
	select {
	case ch <- NewZeroAck():
	case <-ctx.Done():
	}
}

// recvLoop is the broker-link task: it translates inbound messages.Message
// values into AppMessages until the connection is lost, then reports
// Reconnecting and exits (reconnectLoop restarts it on success).
func recvLoop(ctx context.Context, client *mqttclient.Client, ch chan<- AppMessage) {
	for {
		msg, err := client.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, mqttclient.ErrSerialization) {
				log.Printf("aggregator: dropping malformed message: %v", err)
				continue
			}
			log.Printf("aggregator: broker link down: %v", err)
			select {
			case ch <- NewStateChange(Reconnecting()):
			case <-ctx.Done():
			}
			return
		}

		switch msg.Kind {
		case messages.KindConnection:
			select {
			case ch <- NewConnectNode(msg.NodeID):
			case <-ctx.Done():
				return
			}
		case messages.KindDisconnection:
			select {
			case ch <- NewDisconnectNode(msg.NodeID):
			case <-ctx.Done():
				return
			}
		case messages.KindDetection:
			select {
			case ch <- NewDetectionMsg(msg.Detection):
			case <-ctx.Done():
				return
			}
		default:
			log.Printf("aggregator: wrong-sub: unexpected message kind %v", msg.Kind)
		}
	}
}

func reconnectLoop(ctx context.Context, client *mqttclient.Client, ch chan<- AppMessage) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := client.Reconnect(ctx); err == nil {
			select {
			case ch <- NewStateChange(Connected()):
			case <-ctx.Done():
				return
			}
			go recvLoop(ctx, client, ch)
			return
		} else {
			log.Printf("aggregator: reconnect failed, retrying: %v", err)
		}
		t := time.NewTimer(reconnectBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func connectWithRetry(ctx context.Context, cfg config.AggregatorConfig) (*mqttclient.Client, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client, err := mqttclient.Connect(ctx, cfg.BrokerURI(), cfg.ClientID(), 0,
			[]messages.Kind{messages.KindConnection, messages.KindDisconnection, messages.KindDetection},
			mqttclient.Options{RegisterLWT: false})
		if err == nil {
			return client, nil
		}
		log.Printf("aggregator: connect failed, retrying: %v", err)
		t := time.NewTimer(reconnectBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
