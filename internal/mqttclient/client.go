// Package mqttclient wraps paho.mqtt.golang with the connection lifecycle,
// LWT, and typed message stream spec §4.D describes: publish/receive in
// terms of messages.Message rather than raw MQTT topics and bytes, safe to
// share between one receiving goroutine and many publishing goroutines.
package mqttclient

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/timebay/timebay/internal/messages"
)

// Options configures Connect.
type Options struct {
	// RegisterLWT, when true, registers Disconnection(nodeID) as this
	// connection's Last-Will-and-Testament at QoS 2 on /disconnect, and
	// publishes Connection(nodeID) immediately after connecting. Sensor
	// nodes set this true; the aggregator, which has no sensor identity of
	// its own, sets it false and passes nodeID as 0.
	RegisterLWT bool

	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

const defaultTimeout = 10 * time.Second

type inbound struct {
	msg messages.Message
	err error
}

// Client is the pub/sub client abstraction of spec §4.D.
type Client struct {
	cli  mqtt.Client
	subs []messages.Kind

	nodeID      uint16
	registerLWT bool

	inboundCh chan inbound
}

// Connect dials brokerURI, subscribes to subs at their per-topic QoS, and
// (if opts.RegisterLWT) registers Disconnection(nodeID) as the connection's
// LWT and announces Connection(nodeID) once connected.
func Connect(ctx context.Context, brokerURI, clientID string, nodeID uint16, subs []messages.Kind, opts Options) (*Client, error) {
	c := &Client{
		subs:        subs,
		nodeID:      nodeID,
		registerLWT: opts.RegisterLWT,
		inboundCh:   make(chan inbound, 32),
	}

	connectTimeout := opts.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = defaultTimeout
	}

	mopts := mqtt.NewClientOptions().AddBroker(brokerURI).SetClientID(clientID)
	mopts.SetAutoReconnect(false) // reconnection is driven explicitly, per spec §4.E/§4.G
	mopts.SetCleanSession(true)
	mopts.SetOrderMatters(false)
	mopts.SetConnectTimeout(connectTimeout)

	keepAlive := opts.KeepAlive
	if keepAlive == 0 {
		keepAlive = 10 * time.Second
	}
	mopts.SetKeepAlive(keepAlive)

	// Dial through the caller's context, mirroring the teacher's
	// SetCustomOpenConnectionFn socket-tuning dialer.
	mopts.SetCustomOpenConnectionFn(func(uri *url.URL, _ mqtt.ClientOptions) (net.Conn, error) {
		d := net.Dialer{Timeout: connectTimeout}
		return d.DialContext(ctx, "tcp", uri.Host)
	})

	if opts.RegisterLWT {
		lwt := messages.NewDisconnection(nodeID)
		payload, err := messages.Encode(lwt)
		if err != nil {
			return nil, fmt.Errorf("mqttclient: encode LWT: %w", err)
		}
		mopts.SetBinaryWill(messages.TopicDisconnection, payload, messages.QoSDisconnection, false)
	}

	mopts.SetOnConnectHandler(func(cli mqtt.Client) {
		for _, k := range subs {
			topic, qos := topicFor(k)
			if token := cli.Subscribe(topic, qos, c.onMessage); token.WaitTimeout(defaultTimeout) && token.Error() != nil {
				log.Printf("mqttclient: subscribe %s failed: %v", topic, token.Error())
			}
		}
	})
	mopts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqttclient: connection lost: %v", err)
		c.inboundCh <- inbound{err: fmt.Errorf("%w: %v", ErrConnection, err)}
	})

	c.cli = mqtt.NewClient(mopts)

	token := c.cli.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: connect timed out", ErrConnection)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if opts.RegisterLWT {
		if err := c.Publish(messages.NewConnection(nodeID)); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func topicFor(k messages.Kind) (string, byte) {
	switch k {
	case messages.KindConnection:
		return messages.TopicConnection, messages.QoSConnection
	case messages.KindDisconnection:
		return messages.TopicDisconnection, messages.QoSDisconnection
	case messages.KindZero:
		return messages.TopicZero, messages.QoSZero
	case messages.KindDetection:
		return messages.TopicDetection, messages.QoSDetection
	default:
		return "", 0
	}
}

func (c *Client) onMessage(_ mqtt.Client, m mqtt.Message) {
	msg, err := messages.Decode(m.Topic(), m.Payload())
	if err != nil {
		c.inboundCh <- inbound{err: fmt.Errorf("%w: %v", ErrSerialization, err)}
		return
	}
	c.inboundCh <- inbound{msg: msg}
}

// Publish serializes and publishes msg at its topic's QoS. Safe to call
// concurrently from multiple goroutines and concurrently with Recv.
func (c *Client) Publish(msg messages.Message) error {
	payload, err := messages.Encode(msg)
	if err != nil {
		return err
	}
	token := c.cli.Publish(msg.Topic(), msg.QoS(), false, payload)
	if !token.WaitTimeout(defaultTimeout) {
		return fmt.Errorf("%w: publish timed out", ErrConnection)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Recv blocks until a message arrives, the connection is lost, or ctx is
// cancelled. A serialization failure on one inbound message does not
// terminate the stream: the caller should treat ErrSerialization as
// drop-and-continue and call Recv again, per spec §4.G.
func (c *Client) Recv(ctx context.Context) (messages.Message, error) {
	select {
	case in := <-c.inboundCh:
		return in.msg, in.err
	case <-ctx.Done():
		return messages.Message{}, ctx.Err()
	}
}

// Reconnect attempts a single reconnection to the broker, re-announcing
// Connection if this client was configured with an LWT node id. Callers
// needing unbounded retry (spec §4.E) loop over Reconnect themselves with
// their own backoff.
func (c *Client) Reconnect(ctx context.Context) error {
	token := c.cli.Connect()
	if !token.WaitTimeout(defaultTimeout) {
		return fmt.Errorf("%w: reconnect timed out", ErrConnection)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if c.registerLWT {
		return c.Publish(messages.NewConnection(c.nodeID))
	}
	return nil
}

// Disconnect cleanly closes the connection, causing any blocked Recv to
// return ErrExplicitDisconnect.
func (c *Client) Disconnect() {
	c.cli.Disconnect(250)
	select {
	case c.inboundCh <- inbound{err: ErrExplicitDisconnect}:
	default:
	}
}
