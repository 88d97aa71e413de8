// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the seaport YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/seaport/pkg/channel"
	"github.com/Thermoquad/seaport/pkg/scanner"
	"github.com/Thermoquad/seaport/pkg/seatalk"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "SEAPORT_"

// Config is the top-level configuration
type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	SeaTalk SeaTalkConfig `yaml:"seatalk"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
}

// ScanConfig holds the port scheduler settings
type ScanConfig struct {
	MonitorPeriod Duration `yaml:"monitor_period"`
	// CheckDelay is the older name of monitor_period and wins when both are set
	CheckDelay       *Duration          `yaml:"check_delay,omitempty"`
	CloseDelay       Duration           `yaml:"close_delay"`
	FingerprintDelay Duration           `yaml:"fingerprint_delay"`
	DontScan         []string           `yaml:"dont_scan"`
	PortTypes        []scanner.PortType `yaml:"port_types"`
	HotplugPeriod    Duration           `yaml:"hotplug_period"`
	USBOnly          bool               `yaml:"usb_only"`
	// Discriminator maps sentence prefixes such as "$ST" to the port type
	// they prove
	Discriminator map[string]scanner.PortType `yaml:"discriminator"`
}

// SeaTalkConfig holds the bus decoder settings
type SeaTalkConfig struct {
	Framing           string `yaml:"framing"` // "marked" or "unmarked"
	ProprietaryPrefix string `yaml:"proprietary_prefix"`
	BufferSize        int    `yaml:"buffer_size"`
}

// OutputConfig selects where normalized sentences are sent
type OutputConfig struct {
	UDP       string `yaml:"udp"`       // host:port, empty to disable
	WebSocket string `yaml:"websocket"` // listen address, empty to disable
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Duration wraps time.Duration for YAML values like "5s" or "250ms"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			MonitorPeriod:    Duration{scanner.DefaultMonitorPeriod},
			CloseDelay:       Duration{scanner.DefaultCloseDelay},
			FingerprintDelay: Duration{scanner.DefaultFingerprintDelay},
			PortTypes:        append([]scanner.PortType(nil), scanner.PortTypes...),
			HotplugPeriod:    Duration{scanner.DefaultHotplugPeriod},
		},
		SeaTalk: SeaTalkConfig{
			Framing:           seatalk.FramingMarked.String(),
			ProprietaryPrefix: seatalk.DefaultPrefix,
		},
		Output: OutputConfig{
			UDP: channel.DefaultNMEAGroup,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults, then applies SEAPORT_* environment
// overrides and validates. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if cfg.Scan.CheckDelay != nil {
		cfg.Scan.MonitorPeriod = *cfg.Scan.CheckDelay
		cfg.Scan.CheckDelay = nil
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: SEAPORT_MONITOR_PERIOD (or SEAPORT_CHECK_DELAY),
// SEAPORT_CLOSE_DELAY, SEAPORT_FINGERPRINT_DELAY, SEAPORT_DONT_SCAN,
// SEAPORT_PORT_TYPES, SEAPORT_FRAMING, SEAPORT_PREFIX, SEAPORT_OUTPUT_UDP,
// SEAPORT_OUTPUT_WEBSOCKET, SEAPORT_LOG_LEVEL, SEAPORT_LOG_DEVELOPMENT
func (c *Config) applyEnvOverrides() error {
	durations := []struct {
		key string
		dst *Duration
	}{
		{"CHECK_DELAY", &c.Scan.MonitorPeriod},
		{"MONITOR_PERIOD", &c.Scan.MonitorPeriod},
		{"CLOSE_DELAY", &c.Scan.CloseDelay},
		{"FINGERPRINT_DELAY", &c.Scan.FingerprintDelay},
		{"HOTPLUG_PERIOD", &c.Scan.HotplugPeriod},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, d.key, err)
		}
		d.dst.Duration = dur
	}

	if v := getenv("DONT_SCAN"); v != "" {
		c.Scan.DontScan = splitList(v)
	}
	if v := getenv("PORT_TYPES"); v != "" {
		var types []scanner.PortType
		for _, name := range splitList(v) {
			t, err := scanner.ParsePortType(name)
			if err != nil {
				return fmt.Errorf("%sPORT_TYPES: %w", EnvPrefix, err)
			}
			types = append(types, t)
		}
		c.Scan.PortTypes = types
	}
	if v := getenv("USB_ONLY"); v != "" {
		c.Scan.USBOnly = parseBool(v)
	}
	if v := getenv("FRAMING"); v != "" {
		c.SeaTalk.Framing = v
	}
	if v := getenv("PREFIX"); v != "" {
		c.SeaTalk.ProprietaryPrefix = v
	}
	if v := getenv("BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBUFFER_SIZE: %w", EnvPrefix, err)
		}
		c.SeaTalk.BufferSize = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "OUTPUT_UDP"); ok {
		c.Output.UDP = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "OUTPUT_WEBSOCKET"); ok {
		c.Output.WebSocket = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("LOG_DEVELOPMENT"); v != "" {
		c.Log.Development = parseBool(v)
	}
	return nil
}

// Validate checks the delays, port types and framing
func (c *Config) Validate() error {
	if err := scanner.CheckDelays(c.SchedulerConfig()); err != nil {
		return err
	}
	if len(c.Scan.PortTypes) == 0 {
		return scanner.ErrNoPortTypes
	}
	for _, t := range c.Scan.PortTypes {
		if !t.Valid() {
			return fmt.Errorf("invalid port type %d", int(t))
		}
	}
	for prefix, t := range c.Scan.Discriminator {
		if prefix == "" || (prefix[0] != '$' && prefix[0] != '!') {
			return fmt.Errorf("discriminator prefix %q must start with $ or !", prefix)
		}
		if !t.Valid() {
			return fmt.Errorf("discriminator prefix %q: invalid port type", prefix)
		}
	}
	if c.Scan.HotplugPeriod.Duration <= 0 {
		return errors.New("hotplug_period must be positive")
	}
	if _, ok := seatalk.ParseFraming(c.SeaTalk.Framing); !ok {
		return fmt.Errorf("invalid seatalk framing %q (use marked or unmarked)", c.SeaTalk.Framing)
	}
	if c.SeaTalk.ProprietaryPrefix == "" || strings.ContainsAny(c.SeaTalk.ProprietaryPrefix, ",*$!\r\n") {
		return fmt.Errorf("invalid proprietary prefix %q", c.SeaTalk.ProprietaryPrefix)
	}
	if c.SeaTalk.BufferSize < 0 {
		return errors.New("buffer_size must not be negative")
	}
	return nil
}

// SchedulerConfig converts the scan section to scheduler settings
func (c *Config) SchedulerConfig() scanner.Config {
	return scanner.Config{
		MonitorPeriod:    c.Scan.MonitorPeriod.Duration,
		CloseDelay:       c.Scan.CloseDelay.Duration,
		FingerprintDelay: c.Scan.FingerprintDelay.Duration,
		DontScan:         append([]string(nil), c.Scan.DontScan...),
		PortTypes:        append([]scanner.PortType(nil), c.Scan.PortTypes...),
	}
}

// Discriminator builds the configured discriminator, or the default rules
// when none are configured
func (c *Config) Discriminator() scanner.Discriminator {
	if len(c.Scan.Discriminator) == 0 {
		return scanner.DefaultDiscriminator()
	}
	return scanner.NewPrefixDiscriminator(c.Scan.Discriminator)
}

// Framing returns the parsed SeaTalk framing
func (c *Config) Framing() seatalk.Framing {
	f, _ := seatalk.ParseFraming(c.SeaTalk.Framing)
	return f
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(v string) bool {
	v = strings.ToLower(v)
	return v == "1" || v == "true" || v == "yes"
}
