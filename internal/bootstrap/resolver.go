package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chordring/internal/config"
	"chordring/internal/logger"

	"github.com/miekg/dns"
)

// resolveDNS resolves bootstrap peers into "host:port" addresses via
// DNS: either an SRV lookup (one query resolving both targets and
// ports) or a plain A/AAAA lookup paired with cfg.Port. Resolution
// failures and empty answers return an empty list rather than an
// error — DNS bootstrap is best-effort; an empty result is handled the
// same way as a cold ring (this node becomes the first member).
func resolveDNS(cfg config.BootstrapConfig, lgr logger.Logger) ([]string, error) {
	client := &dns.Client{Timeout: 2 * time.Second}

	server := cfg.Resolver
	if server == "" {
		server = "8.8.8.8:53"
	} else if !strings.Contains(server, ":") {
		server += ":53"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if cfg.SRV {
		return resolveSRV(ctx, client, server, cfg, lgr)
	}
	return resolveHost(ctx, client, server, cfg, lgr)
}

func resolveSRV(ctx context.Context, client *dns.Client, server string, cfg config.BootstrapConfig, lgr logger.Logger) ([]string, error) {
	name := fmt.Sprintf("_%s._%s.%s", cfg.Service, cfg.Proto, cfg.DNSName)
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	lgr.Info("sending SRV query", logger.F("qname", msg.Question[0].Name))

	in, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		lgr.Warn("SRV lookup failed", logger.F("err", err.Error()), logger.F("qname", name))
		return []string{}, nil
	}
	if len(in.Answer) == 0 {
		lgr.Warn("SRV lookup returned no answers", logger.F("qname", name))
		return []string{}, nil
	}

	targets := map[string][]string{}
	for _, extra := range in.Extra {
		switch rr := extra.(type) {
		case *dns.A:
			targets[strings.TrimSuffix(rr.Hdr.Name, ".")] = append(targets[strings.TrimSuffix(rr.Hdr.Name, ".")], rr.A.String())
		case *dns.AAAA:
			targets[strings.TrimSuffix(rr.Hdr.Name, ".")] = append(targets[strings.TrimSuffix(rr.Hdr.Name, ".")], rr.AAAA.String())
		}
	}

	var out []string
	for _, ans := range in.Answer {
		srv, ok := ans.(*dns.SRV)
		if !ok {
			continue
		}
		target := strings.TrimSuffix(srv.Target, ".")
		ips := targets[target]
		if len(ips) == 0 {
			ips = append(ips, resolveFallbackA(ctx, client, server, target)...)
		}
		for _, ip := range ips {
			if strings.Contains(ip, ":") {
				out = append(out, fmt.Sprintf("[%s]:%d", ip, srv.Port))
			} else {
				out = append(out, fmt.Sprintf("%s:%d", ip, srv.Port))
			}
		}
	}
	return out, nil
}

// resolveFallbackA queries A then AAAA for target when an SRV answer's
// target had no glue record in the Additional section.
func resolveFallbackA(ctx context.Context, client *dns.Client, server, target string) []string {
	var ips []string
	msgA := new(dns.Msg)
	msgA.SetQuestion(dns.Fqdn(target), dns.TypeA)
	if inA, _, err := client.ExchangeContext(ctx, msgA, server); err == nil {
		for _, a := range inA.Answer {
			if arec, ok := a.(*dns.A); ok {
				ips = append(ips, arec.A.String())
			}
		}
	}
	msgAAAA := new(dns.Msg)
	msgAAAA.SetQuestion(dns.Fqdn(target), dns.TypeAAAA)
	if inAAAA, _, err := client.ExchangeContext(ctx, msgAAAA, server); err == nil {
		for _, a := range inAAAA.Answer {
			if aaaa, ok := a.(*dns.AAAA); ok {
				ips = append(ips, aaaa.AAAA.String())
			}
		}
	}
	return ips
}

func resolveHost(ctx context.Context, client *dns.Client, server string, cfg config.BootstrapConfig, lgr logger.Logger) ([]string, error) {
	name := dns.Fqdn(cfg.DNSName)
	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypeA)

	in, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		lgr.Warn("A lookup failed", logger.F("err", err.Error()), logger.F("qname", name))
		return []string{}, nil
	}

	var out []string
	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			out = append(out, fmt.Sprintf("%s:%d", a.A.String(), cfg.Port))
		}
	}

	if len(out) == 0 {
		msg6 := new(dns.Msg)
		msg6.SetQuestion(name, dns.TypeAAAA)
		if in6, _, err := client.ExchangeContext(ctx, msg6, server); err == nil {
			for _, ans := range in6.Answer {
				if aaaa, ok := ans.(*dns.AAAA); ok {
					out = append(out, fmt.Sprintf("[%s]:%d", aaaa.AAAA.String(), cfg.Port))
				}
			}
		}
	}

	if len(out) == 0 {
		lgr.Warn("host lookup returned no addresses", logger.F("qname", name))
	}
	return out, nil
}
