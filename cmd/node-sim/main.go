// Command node-sim is the interactive simulator named in spec §6: it opens
// one MQTT client per simulated sensor node and lets an operator fire
// Connection, Disconnection, and Detection events by hand, without any real
// hardware. Grounded on original_source/rust_ws/node_sim/{main,cli}.rs,
// reimplemented with cobra for flag parsing per SPEC_FULL §10.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/timebay/timebay/internal/messages"
	"github.com/timebay/timebay/internal/mqttclient"
)

const menu = `
Commands:
1. Connect a node
2. Disconnect a node
3. Trigger node
`

var nodeIDsFlag string

var rootCmd = &cobra.Command{
	Use:   "node-sim <broker_host>",
	Short: "Interactive simulator for timebay sensor nodes",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&nodeIDsFlag, "node-ids", "n", "", "comma-separated list of node ids to simulate (required)")
	_ = rootCmd.MarkFlagRequired("node-ids")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	brokerHost := args[0]

	ids, err := parseNodeIDs(nodeIDsFlag)
	if err != nil {
		return err
	}

	ctx := context.Background()
	brokerURI := fmt.Sprintf("tcp://%s:1883", brokerHost)

	clients := make(map[uint16]*mqttclient.Client, len(ids))
	for _, id := range ids {
		c, err := mqttclient.Connect(ctx, brokerURI, fmt.Sprintf("node%d", id), id, nil, mqttclient.Options{})
		if err != nil {
			return fmt.Errorf("node-sim: connect node %d: %w", id, err)
		}
		clients[id] = c
		fmt.Printf("Connected node %d\n", id)
	}
	fmt.Println("All nodes connected.")
	fmt.Println("Welcome to node sim!")

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(menu)
		if !sc.Scan() {
			return nil
		}
		switch strings.TrimSpace(sc.Text()) {
		case "1":
			connectNode(clients, sc)
		case "2":
			disconnectNode(clients, sc)
		case "3":
			triggerNode(clients, sc)
		default:
			fmt.Println("Invalid input.")
		}
	}
}

func parseNodeIDs(raw string) ([]uint16, error) {
	var ids []uint16
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("node-sim: invalid node id %q: %w", part, err)
		}
		ids = append(ids, uint16(v))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("node-sim: --node-ids must list at least one id")
	}
	return ids, nil
}

func promptUint(sc *bufio.Scanner, prompt string) (uint64, bool) {
	fmt.Println(prompt)
	if !sc.Scan() {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(sc.Text()), 10, 64)
	if err != nil {
		fmt.Println("Could not parse input.")
		return 0, false
	}
	return v, true
}

func connectNode(clients map[uint16]*mqttclient.Client, sc *bufio.Scanner) {
	node, ok := promptUint(sc, "Which node?")
	if !ok {
		return
	}
	c, ok := clients[uint16(node)]
	if !ok {
		fmt.Println("Node did not exist, or broker is not connected.")
		return
	}
	if err := c.Publish(messages.NewConnection(uint16(node))); err != nil {
		fmt.Printf("publish failed: %v\n", err)
	}
}

func disconnectNode(clients map[uint16]*mqttclient.Client, sc *bufio.Scanner) {
	node, ok := promptUint(sc, "Which node?")
	if !ok {
		return
	}
	c, ok := clients[uint16(node)]
	if !ok {
		fmt.Println("Node did not exist, or broker is not connected.")
		return
	}
	if err := c.Publish(messages.NewDisconnection(uint16(node))); err != nil {
		fmt.Printf("publish failed: %v\n", err)
	}
}

func triggerNode(clients map[uint16]*mqttclient.Client, sc *bufio.Scanner) {
	node, ok := promptUint(sc, "Which node?")
	if !ok {
		return
	}
	c, ok := clients[uint16(node)]
	if !ok {
		fmt.Println("Node did not exist, or broker is not connected.")
		return
	}
	dist, ok := promptUint(sc, "Distance(mm)?")
	if !ok {
		fmt.Println("Could not parse distance.")
		return
	}
	now := time.Now()
	msg := messages.NewDetection(uint16(node), uint32(dist), uint64(now.Unix()), uint32(now.Nanosecond()))
	if err := c.Publish(msg); err != nil {
		fmt.Printf("publish failed: %v\n", err)
	}
}
