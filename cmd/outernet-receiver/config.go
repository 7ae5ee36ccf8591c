package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

type appConfig struct {
	outputDir string
	kissFile  string
	serialDev string
	port      int
	host      string
	baud      int

	monitorAddr      string
	monitorPolicy    string
	monitorBuffer    int
	monitorFlushIval time.Duration
	monitorBatchSize int

	metricsAddr     string
	logFormat       string
	logLevel        string
	logMetricsEvery time.Duration

	mdnsEnable bool
	mdnsName   string

	// carrier is derived from which of kissFile/serialDev/port+host was set,
	// not parsed directly; see resolveCarrier.
	carrier string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	output := pflag.StringP("output", "o", ".", "Output directory for reconstructed files")
	kiss := pflag.StringP("kiss", "k", "", "Read framed bytes from this KISS capture file")
	serialDev := pflag.String("serial", "", "Read framed bytes from a live KISS serial device")
	port := pflag.IntP("port", "p", 8280, "UDP port to listen on (multicast carrier)")
	host := pflag.String("host", "", "Multicast group to join, IPv4 or IPv6 (default 239.1.2.3)")
	baud := pflag.Int("baud", 115200, "Serial baud rate (with --serial)")
	monitorAddr := pflag.String("monitor-addr", "", "TCP listen address for the monitor fan-out; empty disables")
	monitorPolicy := pflag.String("monitor-policy", "drop", "Monitor backpressure policy: drop|kick")
	monitorBuffer := pflag.Int("monitor-buffer", 256, "Per-client monitor event buffer")
	monitorFlush := pflag.Duration("monitor-flush-interval", 50*time.Millisecond, "Monitor client batch flush interval")
	monitorBatch := pflag.Int("monitor-batch-size", 32, "Monitor client batch size before a forced flush")
	metricsAddr := pflag.String("metrics-addr", "", "Prometheus /metrics + /ready HTTP listen address; empty disables")
	logFormat := pflag.String("log-format", "text", "Log format: text|json")
	logLevel := pflag.String("log-level", "info", "Log level: debug|info|warn|error")
	logMetricsEvery := pflag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsEnable := pflag.Bool("mdns-enable", false, "Enable mDNS advertisement of the monitor listener")
	mdnsName := pflag.String("mdns-name", "", "mDNS instance name (default outernet-receiver-<hostname>)")
	showVersion := pflag.BoolP("version", "V", false, "Print version and exit")
	pflag.Parse()

	setFlags := map[string]struct{}{}
	pflag.Visit(func(f *pflag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.outputDir = *output
	cfg.kissFile = *kiss
	cfg.serialDev = *serialDev
	cfg.port = *port
	cfg.host = *host
	cfg.baud = *baud
	cfg.monitorAddr = *monitorAddr
	cfg.monitorPolicy = *monitorPolicy
	cfg.monitorBuffer = *monitorBuffer
	cfg.monitorFlushIval = *monitorFlush
	cfg.monitorBatchSize = *monitorBatch
	cfg.metricsAddr = *metricsAddr
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.resolveCarrier(setFlags); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// resolveCarrier picks exactly one input carrier from the mutually exclusive
// flag groups {-k/--kiss}, {--serial}, {-p/--port, --host}: a capture file,
// a live serial device, or the multicast socket (the implicit default when
// neither -k nor --serial is given). --baud is rejected alongside -k and
// ignored by the multicast carrier.
func (c *appConfig) resolveCarrier(set map[string]struct{}) error {
	_, hasKiss := set["kiss"]
	_, hasSerial := set["serial"]
	_, hasPort := set["port"]
	_, hasHost := set["host"]
	_, hasBaud := set["baud"]
	multicastFlagSet := hasPort || hasHost

	switch {
	case hasKiss && hasSerial:
		return errors.New("-k/--kiss and --serial are mutually exclusive")
	case hasKiss && (multicastFlagSet || hasBaud):
		return errors.New("-k/--kiss is mutually exclusive with -p/--port, --host and --baud")
	case hasSerial && multicastFlagSet:
		return errors.New("--serial is mutually exclusive with -p/--port and --host")
	case hasKiss:
		c.carrier = carrierKissfile
	case hasSerial:
		c.carrier = carrierSerial
	default:
		c.carrier = carrierMulticast
	}
	return nil
}

// validate performs semantic validation of the parsed configuration. It does
// not attempt to open devices or listeners, only checks values and the
// combination the chosen carrier requires.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.monitorPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid monitor-policy: %s", c.monitorPolicy)
	}
	if c.monitorBuffer <= 0 {
		return fmt.Errorf("monitor-buffer must be > 0 (got %d)", c.monitorBuffer)
	}
	if c.monitorBatchSize <= 0 {
		return fmt.Errorf("monitor-batch-size must be > 0 (got %d)", c.monitorBatchSize)
	}
	if c.monitorFlushIval <= 0 {
		return errors.New("monitor-flush-interval must be > 0")
	}
	if c.outputDir == "" {
		return errors.New("output directory must not be empty")
	}
	switch c.carrier {
	case carrierKissfile:
		if c.kissFile == "" {
			return errors.New("--kiss requires a capture file path")
		}
	case carrierSerial:
		if c.serialDev == "" {
			return errors.New("--serial requires a device path")
		}
		if c.baud <= 0 {
			return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
		}
	case carrierMulticast:
		if c.port <= 0 || c.port > 65535 {
			return fmt.Errorf("port must be in 1..65535 (got %d)", c.port)
		}
	}
	return nil
}

// applyEnvOverrides maps RECEIVER_* environment variables to config fields
// unless a corresponding flag was explicitly set (flag wins over env).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	str := func(flagName, env string, dst *string) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			*dst = v
		}
	}
	dur := func(flagName, env string, dst *time.Duration) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				*dst = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	num := func(flagName, env string, dst *int) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	boolean := func(flagName, env string, dst *bool) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}

	str("output", "RECEIVER_OUTPUT", &c.outputDir)
	str("kiss", "RECEIVER_KISS", &c.kissFile)
	str("serial", "RECEIVER_SERIAL", &c.serialDev)
	num("port", "RECEIVER_PORT", &c.port)
	str("host", "RECEIVER_HOST", &c.host)
	num("baud", "RECEIVER_BAUD", &c.baud)
	str("monitor-addr", "RECEIVER_MONITOR_ADDR", &c.monitorAddr)
	str("monitor-policy", "RECEIVER_MONITOR_POLICY", &c.monitorPolicy)
	num("monitor-buffer", "RECEIVER_MONITOR_BUFFER", &c.monitorBuffer)
	dur("monitor-flush-interval", "RECEIVER_MONITOR_FLUSH_INTERVAL", &c.monitorFlushIval)
	num("monitor-batch-size", "RECEIVER_MONITOR_BATCH_SIZE", &c.monitorBatchSize)
	str("metrics-addr", "RECEIVER_METRICS", &c.metricsAddr)
	str("log-format", "RECEIVER_LOG_FORMAT", &c.logFormat)
	str("log-level", "RECEIVER_LOG_LEVEL", &c.logLevel)
	dur("log-metrics-interval", "RECEIVER_LOG_METRICS_INTERVAL", &c.logMetricsEvery)
	boolean("mdns-enable", "RECEIVER_MDNS_ENABLE", &c.mdnsEnable)
	str("mdns-name", "RECEIVER_MDNS_NAME", &c.mdnsName)

	return firstErr
}
