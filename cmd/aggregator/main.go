// Command aggregator runs the lap-timing aggregator: it follows every
// sensor node's Connection/Disconnection/Detection stream and maintains the
// current, last, and last-last laps via the splits engine. The real system
// pairs this with a TUI (out of scope per spec §11); this binary stands in
// for that UI with a minimal stdin command reader and a log-line lap
// printer, per SPEC_FULL §9.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/timebay/timebay/internal/aggregator"
	"github.com/timebay/timebay/internal/config"
	"github.com/timebay/timebay/internal/splits"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.LoadAggregatorConfig()
	if err != nil {
		log.Fatalf("aggregator: config: %v", err)
	}
	log.Printf("aggregator: broker=%s client_id=%s", cfg.BrokerURI(), cfg.ClientID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		log.Printf("aggregator: shutting down, signal=%v", sig)
		cancel()
	}()

	cmds := make(chan aggregator.AppMessage, 8)
	go readStdinCommands(ctx, cmds)

	onLapComplete := func(c *aggregator.LapCompletion) {
		printLap(c.Lap)
	}

	if err := aggregator.Run(ctx, cfg, cmds, onLapComplete); err != nil && ctx.Err() == nil {
		log.Fatalf("aggregator: run: %v", err)
	}
}

// readStdinCommands implements spec §5's UI-side task: "zero<newline>"
// forwards a SendZero command into the aggregator's merger loop; anything
// else is ignored.
func readStdinCommands(ctx context.Context, out chan<- aggregator.AppMessage) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "zero" {
			continue
		}
		select {
		case out <- aggregator.NewSendZero():
		case <-ctx.Done():
			return
		}
	}
}

func printLap(lap *splits.Splits) {
	total := lap.TotalTime()
	totalStr := "n/a"
	if total != nil {
		totalStr = splits.FormatTime(*total)
	}
	fmt.Printf("lap complete: total=%s sectors=", totalStr)
	for i, d := range lap.SectorTimes() {
		if i > 0 {
			fmt.Print(" ")
		}
		if d == nil {
			fmt.Print("-")
		} else {
			fmt.Print(splits.FormatTime(*d))
		}
	}
	fmt.Println()
}
