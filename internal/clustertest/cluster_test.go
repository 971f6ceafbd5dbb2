//go:build docker

// This file requires a running Docker daemon and the chordring-net
// compose stack (see docker-compose.yml at the module root). It is
// excluded from the default test run by the "docker" build tag; run it
// with:
//
//	docker compose up -d
//	go test -tags docker ./internal/clustertest/...
package clustertest

import (
	"context"
	"testing"
	"time"

	"chordring/internal/cliclient"
)

const (
	testSuffix  = "chordring-node"
	testPort    = 4000
	testNetwork = "chordring-net"
)

func TestThreeNodeRingJoinInsertQueryDepart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	boot, err := NewDockerBootstrap(testSuffix, testPort, testNetwork)
	if err != nil {
		t.Fatalf("docker bootstrap: %v", err)
	}
	defer boot.Close()

	addrs, err := boot.Discover(ctx)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(addrs) < 3 {
		t.Fatalf("expected at least 3 ring-node containers on %s, found %d: %v", testNetwork, len(addrs), addrs)
	}

	entry := cliclient.Connect(addrs[0])

	if _, err := entry.Insert(ctx, "alpha", "one"); err != nil {
		t.Fatalf("insert via %s: %v", addrs[0], err)
	}

	// Query from a different container than the one the key was
	// inserted through, to exercise forwarding across the ring.
	other := cliclient.Connect(addrs[len(addrs)-1])
	val, _, err := other.Query(ctx, "alpha")
	if err != nil {
		t.Fatalf("query via %s: %v", addrs[len(addrs)-1], err)
	}
	if val != "one" {
		t.Fatalf("got value %q, want %q", val, "one")
	}

	ring, _, err := entry.Overlay(ctx)
	if err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if len(ring) < 3 {
		t.Fatalf("overlay reported %d ring members, want at least 3", len(ring))
	}

	if _, err := other.Depart(ctx); err != nil {
		t.Fatalf("depart via %s: %v", addrs[len(addrs)-1], err)
	}

	// Give the depart handoff time to settle, then confirm the key
	// survived the departure on the remaining ring.
	time.Sleep(500 * time.Millisecond)
	val, _, err = entry.Query(ctx, "alpha")
	if err != nil {
		t.Fatalf("query after depart: %v", err)
	}
	if val != "one" {
		t.Fatalf("got value %q after depart, want %q", val, "one")
	}
}
