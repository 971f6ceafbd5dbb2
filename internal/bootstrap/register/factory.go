package register

import (
	"context"
	"fmt"

	"chordring/internal/config"
)

// NewRegistrar builds the Registrar named by cfg.Type.
func NewRegistrar(ctx context.Context, cfg config.RegisterConfig) (Registrar, error) {
	switch cfg.Type {
	case "route53":
		return NewRoute53Registrar(ctx, cfg.Route53.HostedZoneID, cfg.Route53.DomainSuffix, cfg.Route53.TTL)
	default:
		return nil, fmt.Errorf("unsupported registrar type: %s", cfg.Type)
	}
}
