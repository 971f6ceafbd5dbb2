package bootstrap

import (
	"context"

	"chordring/internal/bootstrap/register"
	"chordring/internal/config"
	"chordring/internal/domain"
	"chordring/internal/logger"
)

// DNSBootstrap discovers peers via SRV or A/AAAA lookups and,
// optionally, registers/deregisters this node with an external
// registrar (currently Route53) so it becomes discoverable in turn.
type DNSBootstrap struct {
	cfg       config.BootstrapConfig
	lgr       logger.Logger
	registrar register.Registrar // nil when cfg.Register.Enabled is false
}

// NewDNSBootstrap builds a DNSBootstrap. If cfg.Register.Enabled,
// registrar must be non-nil (built via register.NewRegistrar).
func NewDNSBootstrap(cfg config.BootstrapConfig, lgr logger.Logger, registrar register.Registrar) *DNSBootstrap {
	return &DNSBootstrap{cfg: cfg, lgr: lgr, registrar: registrar}
}

func (d *DNSBootstrap) Discover(ctx context.Context) ([]string, error) {
	return resolveDNS(d.cfg, d.lgr)
}

func (d *DNSBootstrap) Register(ctx context.Context, self domain.NodeRef) error {
	if d.registrar == nil {
		return nil
	}
	return d.registrar.RegisterNode(ctx, self.ID.String(), self.IP, self.Port)
}

func (d *DNSBootstrap) Deregister(ctx context.Context, self domain.NodeRef) error {
	if d.registrar == nil {
		return nil
	}
	return d.registrar.DeregisterNode(ctx, self.ID.String(), self.IP, self.Port)
}
