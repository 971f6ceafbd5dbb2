// Package clustertest drives a multi-node ring running in Docker
// containers, for integration scenarios that a single-process test
// binary can't exercise: real process boundaries, real container
// restarts, real network isolation between ring members.
package clustertest

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// DockerBootstrap discovers running ring-node containers by name suffix
// and Docker network, the same shape as the container-name/network
// matching a DNS-based bootstrap performs against SRV records — except
// the directory here is the Docker daemon itself.
type DockerBootstrap struct {
	Suffix  string // e.g. "chordring-node"
	Port    int    // e.g. 4000
	Network string // e.g. "chordring-net"

	cli *client.Client
}

// NewDockerBootstrap builds a DockerBootstrap talking to the daemon
// named by the environment (DOCKER_HOST et al.).
func NewDockerBootstrap(suffix string, port int, network string) (*DockerBootstrap, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &DockerBootstrap{
		Suffix:  strings.TrimSpace(suffix),
		Port:    port,
		Network: strings.TrimSpace(network),
		cli:     cli,
	}, nil
}

// Close releases the underlying Docker client connection.
func (d *DockerBootstrap) Close() error { return d.cli.Close() }

// Discover lists running containers, filters to those whose name
// contains Suffix, and resolves each one's address on Network using the
// container name as the DNS-resolvable host (Docker's embedded DNS
// resolves container names within a user-defined network).
func (d *DockerBootstrap) Discover(ctx context.Context) ([]string, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{All: false})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	var addrs []string
	for _, c := range containers {
		name := strings.TrimPrefix(firstName(c.Names), "/")
		if name == "" || !strings.Contains(name, d.Suffix) {
			continue
		}
		if c.NetworkSettings == nil {
			continue
		}
		if _, ok := c.NetworkSettings.Networks[d.Network]; !ok {
			continue
		}
		addrs = append(addrs, fmt.Sprintf("%s:%d", name, d.Port))
	}
	return addrs, nil
}

func firstName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
