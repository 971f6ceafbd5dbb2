package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/peterh/liner"

	"chordring/internal/cliclient"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "address of the ring node to connect to")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout (e.g. 5s)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	api := cliclient.Connect(*addr)
	fmt.Printf("chordring interactive client. Connected to %s\n", api.Addr())
	fmt.Println("Available commands: insert/query/delete/overlay/depart/ping/use/exit")
	fmt.Println(`  query "*" queries every key across the whole ring`)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(fmt.Sprintf("chordring[%s]> ", api.Addr()))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Aborted")
				continue
			}
			break
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		cmd := args[0]
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)

		switch cmd {
		case "insert":
			if len(args) < 3 {
				fmt.Println("Usage: insert <key> <value>")
				cancel()
				continue
			}
			key, value := args[1], args[2]
			delay, err := api.Insert(ctx, key, value)
			if err != nil {
				fmt.Printf("Insert failed (%v) | latency=%s\n", err, delay)
			} else {
				fmt.Printf("Insert succeeded (key=%s, value=%s) | latency=%s\n", key, value, delay)
			}

		case "query":
			if len(args) < 2 {
				fmt.Println("Usage: query <key> (key \"*\" queries the whole ring)")
				cancel()
				continue
			}
			key := args[1]
			if key == "*" {
				result, delay, err := api.QueryAll(ctx)
				if err != nil {
					fmt.Printf("Query failed: %v | latency=%s\n", err, delay)
					cancel()
					continue
				}
				fmt.Printf("Stores across ring (nodes=%d) | latency=%s\n", len(result), delay)
				for nodeID, snap := range result {
					fmt.Printf("  node %s: %d keys\n", nodeID, len(snap))
					for keyID, rec := range snap {
						fmt.Printf("    - %s: key=%s value=%s\n", keyID, rec.Key, rec.Value)
					}
				}
				cancel()
				continue
			}
			val, delay, err := api.Query(ctx, key)
			switch {
			case err == nil:
				fmt.Printf("Query succeeded (key=%s, value=%s) | latency=%s\n", key, val, delay)
			case errors.Is(err, cliclient.ErrNotFound):
				fmt.Printf("Key not found: %s | latency=%s\n", key, delay)
			default:
				fmt.Printf("Query failed: %v | latency=%s\n", err, delay)
			}

		case "delete":
			if len(args) < 2 {
				fmt.Println("Usage: delete <key>")
				cancel()
				continue
			}
			key := args[1]
			delay, err := api.Delete(ctx, key)
			if err != nil {
				fmt.Printf("Delete failed: %v | latency=%s\n", err, delay)
			} else {
				fmt.Printf("Delete succeeded (key=%s) | latency=%s\n", key, delay)
			}

		case "overlay":
			ring, delay, err := api.Overlay(ctx)
			if err != nil {
				fmt.Printf("Overlay failed: %v | latency=%s\n", err, delay)
				cancel()
				continue
			}
			fmt.Printf("Ring members (count=%d) | latency=%s\n", len(ring), delay)
			for i, n := range ring {
				fmt.Printf("  [%d] %s (%s:%d)\n", i, n.ID, n.IP, n.Port)
			}

		case "depart":
			delay, err := api.Depart(ctx)
			if err != nil {
				fmt.Printf("Depart failed: %v | latency=%s\n", err, delay)
			} else {
				fmt.Printf("Depart succeeded | latency=%s\n", delay)
			}

		case "ping":
			pr, delay, err := api.Ping(ctx)
			if err != nil {
				fmt.Printf("Ping failed: %v | latency=%s\n", err, delay)
				cancel()
				continue
			}
			fmt.Printf("Node %s (%s:%d) | latency=%s\n", pr.NodeID, pr.IP, pr.Port, delay)
			if pr.Successor != nil {
				fmt.Printf("  Successor: %s (%s:%d)\n", pr.Successor.ID, pr.Successor.IP, pr.Successor.Port)
			}
			if pr.Predecessor != nil {
				fmt.Printf("  Predecessor: %s (%s:%d)\n", pr.Predecessor.ID, pr.Predecessor.IP, pr.Predecessor.Port)
			}

		case "use":
			if len(args) < 2 {
				fmt.Println("Usage: use <addr>")
				cancel()
				continue
			}
			api = cliclient.Connect(args[1])
			fmt.Printf("Switched connection to %s\n", api.Addr())

		case "exit", "quit":
			fmt.Println("Bye!")
			cancel()
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}

		cancel()
	}
}
