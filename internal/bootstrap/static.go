package bootstrap

import (
	"context"

	"chordring/internal/domain"
)

// StaticBootstrap discovers peers from a fixed, operator-supplied list.
// It never registers or deregisters anywhere.
type StaticBootstrap struct {
	peers []string
}

// NewStaticBootstrap builds a StaticBootstrap over peers.
func NewStaticBootstrap(peers []string) *StaticBootstrap {
	return &StaticBootstrap{peers: peers}
}

func (s *StaticBootstrap) Discover(ctx context.Context) ([]string, error) {
	return s.peers, nil
}

func (s *StaticBootstrap) Register(ctx context.Context, self domain.NodeRef) error {
	return nil
}

func (s *StaticBootstrap) Deregister(ctx context.Context, self domain.NodeRef) error {
	return nil
}
