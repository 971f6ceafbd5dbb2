// Package config loads and validates the node's YAML configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chordring/internal/logger"
)

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

type FileLoggerConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

type LoggerConfig struct {
	Active   bool             `yaml:"active"`
	Level    string           `yaml:"level"`
	Encoding string           `yaml:"encoding"`
	Mode     string           `yaml:"mode"`
	File     FileLoggerConfig `yaml:"file"`
}

// RingConfig carries the ring-wide parameters the spec calls for: the
// identifier width and the forwarding safeguards from spec.md §9
// (a hop cap on synchronous forwarding chains, and a timeout applied to
// every peer RPC).
type RingConfig struct {
	IDBits     int           `yaml:"idBits"`
	Mode       string        `yaml:"mode"`
	HopLimit   int           `yaml:"hopLimit"`
	RPCTimeout time.Duration `yaml:"rpcTimeout"`
}

type Route53Config struct {
	HostedZoneID string `yaml:"hostedZoneId"`
	DomainSuffix string `yaml:"domainSuffix"`
	TTL          int64  `yaml:"ttl"`
}

type RegisterConfig struct {
	Enabled bool          `yaml:"enabled"`
	Type    string        `yaml:"type"`
	Route53 Route53Config `yaml:"route53"`
}

type BootstrapConfig struct {
	Mode     string         `yaml:"mode"`
	DNSName  string         `yaml:"dnsName"`
	Resolver string         `yaml:"resolver"`
	Service  string         `yaml:"service"`
	Proto    string         `yaml:"proto"`
	SRV      bool           `yaml:"srv"`
	Port     int            `yaml:"port"`
	Peers    []string       `yaml:"peers"`
	Register RegisterConfig `yaml:"register"`
}

type NodeConfig struct {
	ID   string `yaml:"id"`
	Bind string `yaml:"bind"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	Ring      RingConfig      `yaml:"ring"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Node      NodeConfig      `yaml:"node"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoadConfig reads and parses the YAML configuration file at path.
//
// This performs only syntactic parsing; call ValidateConfig afterwards
// to check structural correctness.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnvOverrides overlays selected deployment-specific fields from
// the environment onto the loaded configuration.
func (cfg *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NODE_ID"); v != "" {
		cfg.Node.ID = v
	}
	if v := os.Getenv("NODE_BIND"); v != "" {
		cfg.Node.Bind = v
	} else if cfg.Node.Bind == "" {
		cfg.Node.Bind = "0.0.0.0"
	}
	if v := os.Getenv("NODE_HOST"); v != "" {
		cfg.Node.Host = v
	}
	if v := os.Getenv("NODE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Node.Port = port
		}
	}

	if v := os.Getenv("BOOTSTRAP_MODE"); v != "" {
		cfg.Bootstrap.Mode = v
	}
	if v := os.Getenv("BOOTSTRAP_DNSNAME"); v != "" {
		cfg.Bootstrap.DNSName = v
	}
	if v := os.Getenv("BOOTSTRAP_SRV"); v != "" {
		cfg.Bootstrap.SRV = parseBool(v)
	}
	if v := os.Getenv("BOOTSTRAP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Bootstrap.Port = port
		}
	}
	if v := os.Getenv("BOOTSTRAP_PEERS"); v != "" {
		cfg.Bootstrap.Peers = strings.Split(v, ",")
	}
	if v := os.Getenv("REGISTER_ENABLED"); v != "" {
		cfg.Bootstrap.Register.Enabled = parseBool(v)
	}
	if v := os.Getenv("REGISTER_ZONE_ID"); v != "" {
		cfg.Bootstrap.Register.Route53.HostedZoneID = v
	}
	if v := os.Getenv("REGISTER_SUFFIX"); v != "" {
		cfg.Bootstrap.Register.Route53.DomainSuffix = v
	}
	if v := os.Getenv("REGISTER_TTL"); v != "" {
		if ttl, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Bootstrap.Register.Route53.TTL = ttl
		}
	}

	if v := os.Getenv("TRACE_ENABLED"); v != "" {
		cfg.Telemetry.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.Tracing.Exporter = v
	}
	if v := os.Getenv("TRACE_ENDPOINT"); v != "" {
		cfg.Telemetry.Tracing.Endpoint = v
	}

	if v := os.Getenv("LOGGER_ENABLED"); v != "" {
		cfg.Logger.Active = parseBool(v)
	}
	if v := os.Getenv("LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("LOGGER_ENCODING"); v != "" {
		cfg.Logger.Encoding = v
	}
	if v := os.Getenv("LOGGER_MODE"); v != "" {
		cfg.Logger.Mode = v
	}
	if v := os.Getenv("LOGGER_FILE_PATH"); v != "" {
		cfg.Logger.File.Path = v
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

// ValidateConfig performs structural validation of the loaded
// configuration, accumulating every problem found into a single error.
func (cfg *Config) ValidateConfig() error {
	var errs []string

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
		if cfg.Logger.File.MaxSize < 0 || cfg.Logger.File.MaxBackups < 0 || cfg.Logger.File.MaxAge < 0 {
			errs = append(errs, "logger.file.* values must be non-negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	if cfg.Ring.IDBits <= 0 {
		errs = append(errs, "ring.idBits must be > 0")
	}
	switch cfg.Ring.Mode {
	case "public", "private":
	default:
		errs = append(errs, fmt.Sprintf("invalid ring.mode: %s", cfg.Ring.Mode))
	}
	if cfg.Ring.HopLimit <= 0 {
		errs = append(errs, "ring.hopLimit must be > 0")
	}
	if cfg.Ring.RPCTimeout <= 0 {
		errs = append(errs, "ring.rpcTimeout must be > 0")
	}

	b := cfg.Bootstrap
	switch b.Mode {
	case "dns":
		if b.DNSName == "" {
			errs = append(errs, "bootstrap.dnsName is required in mode=dns")
		}
		if !b.SRV && b.Port <= 0 {
			errs = append(errs, "bootstrap.port must be > 0 when using A/AAAA (srv=false)")
		}
	case "static":
		for _, p := range b.Peers {
			if _, _, err := net.SplitHostPort(p); err != nil {
				errs = append(errs, fmt.Sprintf("invalid peer address %q in bootstrap.peers: %v", p, err))
			}
		}
	case "init":
		// first node in the ring: no extra constraint
	default:
		errs = append(errs, fmt.Sprintf("invalid bootstrap.mode: %s (must be dns, static or init)", b.Mode))
	}
	if b.Register.Enabled {
		switch b.Register.Type {
		case "route53":
			if b.Register.Route53.HostedZoneID == "" {
				errs = append(errs, "bootstrap.register.route53.hostedZoneId is required when register.enabled=true")
			}
			if b.Register.Route53.DomainSuffix == "" {
				errs = append(errs, "bootstrap.register.route53.domainSuffix is required when register.enabled=true")
			}
			if b.Register.Route53.TTL <= 0 {
				errs = append(errs, "bootstrap.register.route53.ttl must be > 0 when register.enabled=true")
			}
		default:
			errs = append(errs, fmt.Sprintf("invalid bootstrap.register.type: %s", b.Register.Type))
		}
	}

	if cfg.Node.Port < 0 || cfg.Node.Port > 65535 {
		errs = append(errs, fmt.Sprintf("node.port must be in [0,65535], got %d", cfg.Node.Port))
	}

	if cfg.Telemetry.Tracing.Enabled {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Sprintf("invalid telemetry.tracing.exporter: %s", cfg.Telemetry.Tracing.Exporter))
		}
		if cfg.Telemetry.Tracing.Endpoint == "" && cfg.Telemetry.Tracing.Exporter == "otlp" {
			errs = append(errs, "telemetry.tracing.endpoint is required when exporter=otlp")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig emits the loaded configuration at DEBUG level, useful for
// diagnosing startup issues.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded configuration",
		logger.F("logger.active", cfg.Logger.Active),
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),

		logger.F("ring.idBits", cfg.Ring.IDBits),
		logger.F("ring.mode", cfg.Ring.Mode),
		logger.F("ring.hopLimit", cfg.Ring.HopLimit),
		logger.F("ring.rpcTimeout", cfg.Ring.RPCTimeout.String()),

		logger.F("bootstrap.mode", cfg.Bootstrap.Mode),
		logger.F("bootstrap.dnsName", cfg.Bootstrap.DNSName),
		logger.F("bootstrap.srv", cfg.Bootstrap.SRV),
		logger.F("bootstrap.port", cfg.Bootstrap.Port),
		logger.F("bootstrap.peers", cfg.Bootstrap.Peers),
		logger.F("bootstrap.register.enabled", cfg.Bootstrap.Register.Enabled),
		logger.F("bootstrap.register.type", cfg.Bootstrap.Register.Type),

		logger.F("node.id", cfg.Node.ID),
		logger.F("node.bind", cfg.Node.Bind),
		logger.F("node.port", cfg.Node.Port),

		logger.F("telemetry.tracing.enabled", cfg.Telemetry.Tracing.Enabled),
		logger.F("telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter),
		logger.F("telemetry.tracing.endpoint", cfg.Telemetry.Tracing.Endpoint),
	)
}
