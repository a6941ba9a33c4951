// Package config holds the scan configuration: detection-mode profiles,
// rate-limit/proxy/fuzzing option groups, config-file loading (JSON or
// YAML), command-line flags, and fail-fast validation.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Detection modes.
const (
	ModeSimple     = "simple"
	ModeAggressive = "aggressive"
	ModeStealth    = "stealth"
)

// Retry and concurrency-adjustment constants shared by every mode.
const (
	RetryDelaySeconds    = 1.0
	RetryJitterSeconds   = 0.5
	TimeoutBackoffFactor = 1.5
	MaxTimeoutThreshold  = 5
	MinConcurrentTasks   = 5
	DefaultBatchSize     = 50
	MaxPathsSimple       = 1000
	MaxPathsStealth      = 500
)

// ModeProfile bundles the knobs a detection mode controls.
type ModeProfile struct {
	MaxConcurrentTasks  int     `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks"`
	ConnectTimeout      int     `json:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout         int     `json:"read_timeout" yaml:"read_timeout"`
	DelaySeconds        float64 `json:"delay_between_requests" yaml:"delay_between_requests"`
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
	MaxRetries          int     `json:"max_retries" yaml:"max_retries"`
	RandomUserAgents    bool    `json:"random_user_agents" yaml:"random_user_agents"`
	MaxPaths            int     `json:"max_paths" yaml:"max_paths"`
	Description         string  `json:"description" yaml:"description"`
}

// defaultModes returns the built-in profiles.
func defaultModes() map[string]ModeProfile {
	return map[string]ModeProfile{
		ModeSimple: {
			MaxConcurrentTasks:  50,
			ConnectTimeout:      3,
			ReadTimeout:         10,
			ConfidenceThreshold: 0.5,
			MaxRetries:          1,
			MaxPaths:            MaxPathsSimple,
			Description:         "Quick scan with minimal requests",
		},
		ModeAggressive: {
			MaxConcurrentTasks:  100,
			ConnectTimeout:      5,
			ReadTimeout:         15,
			ConfidenceThreshold: 0.6,
			MaxRetries:          3,
			RandomUserAgents:    true,
			MaxPaths:            10000,
			Description:         "Thorough scan with maximum coverage",
		},
		ModeStealth: {
			MaxConcurrentTasks:  10,
			ConnectTimeout:      8,
			ReadTimeout:         20,
			DelaySeconds:        1.5,
			ConfidenceThreshold: 0.7,
			MaxRetries:          2,
			RandomUserAgents:    true,
			MaxPaths:            MaxPathsStealth,
			Description:         "Slow, careful scan to avoid detection",
		},
	}
}

// Config is the full scan configuration.
type Config struct {
	TargetURL    string `json:"target_url" yaml:"target_url"`
	Wordlist     string `json:"wordlist" yaml:"wordlist"`
	OutputFile   string `json:"output_file" yaml:"output_file"`
	ExportFormat string `json:"export_format" yaml:"export_format"`

	DetectionMode string                 `json:"detection_mode" yaml:"detection_mode"`
	Modes         map[string]ModeProfile `json:"modes" yaml:"modes"`

	UseRateLimiting      bool    `json:"use_rate_limiting" yaml:"use_rate_limiting"`
	RateLimit            float64 `json:"rate_limit" yaml:"rate_limit"`
	RateBurst            int     `json:"rate_limit_burst" yaml:"rate_limit_burst"`
	AdaptiveRateLimiting bool    `json:"adaptive_rate_limiting" yaml:"adaptive_rate_limiting"`

	UseProxies               bool     `json:"use_proxies" yaml:"use_proxies"`
	Proxies                  []string `json:"proxies" yaml:"proxies"`
	ProxyListFile            string   `json:"proxy_list_file" yaml:"proxy_list_file"`
	ProxyRotationStrategy    string   `json:"proxy_rotation_strategy" yaml:"proxy_rotation_strategy"`
	ProxyMaxFailures         int      `json:"proxy_max_failures" yaml:"proxy_max_failures"`
	ProxyHealthCheckInterval int      `json:"proxy_health_check_interval" yaml:"proxy_health_check_interval"`
	ProxyRequired            bool     `json:"proxy_required" yaml:"proxy_required"`

	UseFuzzing   bool `json:"use_path_fuzzing" yaml:"use_path_fuzzing"`
	FuzzingDepth int  `json:"fuzzing_depth" yaml:"fuzzing_depth"`

	MaxResponseMB int    `json:"max_response_mb" yaml:"max_response_mb"`
	LogLevel      string `json:"log_level" yaml:"log_level"`
	Verbose       bool   `json:"verbose" yaml:"verbose"`
	StealthSeed   int64  `json:"stealth_seed" yaml:"stealth_seed"`

	UserAgents []string `json:"user_agents" yaml:"user_agents"`
}

// Default returns a Config with the built-in defaults applied.
func Default() Config {
	return Config{
		ExportFormat:             "json",
		DetectionMode:            ModeAggressive,
		Modes:                    defaultModes(),
		UseRateLimiting:          true,
		RateLimit:                float64(envOrDefault("PANELGRAB_RATE_LIMIT", 50)),
		RateBurst:                envOrDefault("PANELGRAB_RATE_BURST", 10),
		AdaptiveRateLimiting:     true,
		ProxyRotationStrategy:    "round_robin",
		ProxyMaxFailures:         3,
		ProxyHealthCheckInterval: 300,
		FuzzingDepth:             1,
		MaxResponseMB:            10,
		LogLevel:                 envOrDefaultStr("PANELGRAB_LOG_LEVEL", "info"),
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.6422.60 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.6422.60 Safari/537.36",
		},
	}
}

// Mode returns the active detection-mode profile.
func (c *Config) Mode() ModeProfile {
	if m, ok := c.Modes[c.DetectionMode]; ok {
		return m
	}
	return defaultModes()[ModeAggressive]
}

// LoadFile merges a JSON or YAML config file into c. The format is chosen
// by extension; a missing file leaves c untouched.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing YAML config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing JSON config %s: %w", path, err)
		}
	}

	// A config file may define only some modes; backfill the rest.
	for name, def := range defaultModes() {
		if _, ok := c.Modes[name]; !ok {
			if c.Modes == nil {
				c.Modes = make(map[string]ModeProfile)
			}
			c.Modes[name] = def
		}
	}
	return nil
}

// Parse builds a Config from defaults, an optional config file, and flags,
// in that order of precedence (last wins).
func Parse() (Config, error) {
	cfg := Default()

	configFile := flag.String("config", "", "Config file (JSON or YAML)")
	flag.StringVar(&cfg.TargetURL, "u", "", "Target URL")
	flag.StringVar(&cfg.Wordlist, "w", "", "Wordlist path (.txt or .json)")
	flag.StringVar(&cfg.DetectionMode, "mode", cfg.DetectionMode, "Detection mode (simple|aggressive|stealth)")
	concurrency := flag.Int("concurrency", 0, "Override mode concurrency")
	timeout := flag.Int("timeout", 0, "Override connect timeout (seconds)")
	flag.StringVar(&cfg.OutputFile, "o", "", "Output file base name")
	flag.StringVar(&cfg.ExportFormat, "format", cfg.ExportFormat, "Export format (json|csv|html|txt)")
	flag.BoolVar(&cfg.UseFuzzing, "fuzzing", false, "Enable path fuzzing")
	flag.IntVar(&cfg.FuzzingDepth, "fuzzing-depth", cfg.FuzzingDepth, "Fuzzing depth (1-3)")
	rateLimit := flag.Float64("rate-limit", 0, "Rate limit in req/s (0 = keep default)")
	noRateLimit := flag.Bool("no-rate-limit", false, "Disable rate limiting")
	proxyFlag := flag.String("proxy", "", "Proxy URL (http://host:port or socks5://host:port)")
	flag.StringVar(&cfg.ProxyListFile, "proxy-file", "", "File with proxy URLs, one per line")
	flag.StringVar(&cfg.ProxyRotationStrategy, "proxy-strategy", cfg.ProxyRotationStrategy, "Proxy rotation (round_robin|random|performance)")
	flag.BoolVar(&cfg.ProxyRequired, "proxy-required", false, "Fail tasks instead of going direct when no proxy is healthy")
	flag.Int64Var(&cfg.StealthSeed, "stealth-seed", 0, "Seed for stealth path sampling (0 = random)")
	flag.BoolVar(&cfg.Verbose, "v", false, "Verbose output")

	flag.Parse()

	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			return cfg, err
		}
	}

	if *rateLimit > 0 {
		cfg.RateLimit = *rateLimit
		cfg.UseRateLimiting = true
	}
	if *noRateLimit {
		cfg.UseRateLimiting = false
	}
	if *proxyFlag != "" {
		cfg.UseProxies = true
		cfg.Proxies = append(cfg.Proxies, *proxyFlag)
	}
	if cfg.ProxyListFile != "" {
		cfg.UseProxies = true
	}

	if override := applyOverrides(&cfg, *concurrency, *timeout); override != nil {
		return cfg, override
	}

	return cfg, nil
}

// applyOverrides patches the active mode profile with flag overrides.
func applyOverrides(cfg *Config, concurrency, timeout int) error {
	if concurrency == 0 && timeout == 0 {
		return nil
	}
	mode, ok := cfg.Modes[cfg.DetectionMode]
	if !ok {
		return fmt.Errorf("unknown detection mode %q", cfg.DetectionMode)
	}
	if concurrency > 0 {
		mode.MaxConcurrentTasks = concurrency
	}
	if timeout > 0 {
		mode.ConnectTimeout = timeout
	}
	cfg.Modes[cfg.DetectionMode] = mode
	return nil
}

// Validate fails fast on configuration/input errors before scanning begins.
func Validate(cfg *Config) error {
	if cfg.TargetURL == "" {
		return fmt.Errorf("no target specified: use -u")
	}

	if !strings.HasPrefix(cfg.TargetURL, "http://") && !strings.HasPrefix(cfg.TargetURL, "https://") {
		cfg.TargetURL = "http://" + cfg.TargetURL
	}
	parsed, err := url.Parse(cfg.TargetURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid target URL %q", cfg.TargetURL)
	}

	if cfg.Wordlist == "" {
		return fmt.Errorf("wordlist is required (-w)")
	}
	if _, err := os.Stat(cfg.Wordlist); os.IsNotExist(err) {
		return fmt.Errorf("wordlist file not found: %s", cfg.Wordlist)
	}

	if _, ok := cfg.Modes[cfg.DetectionMode]; !ok {
		return fmt.Errorf("invalid detection mode %q (valid: simple, aggressive, stealth)", cfg.DetectionMode)
	}

	switch cfg.ProxyRotationStrategy {
	case "round_robin", "random", "performance":
	default:
		return fmt.Errorf("invalid proxy rotation strategy %q", cfg.ProxyRotationStrategy)
	}

	if cfg.FuzzingDepth < 1 || cfg.FuzzingDepth > 3 {
		return fmt.Errorf("fuzzing depth must be 1-3, got %d", cfg.FuzzingDepth)
	}

	switch cfg.ExportFormat {
	case "json", "csv", "html", "txt":
	default:
		return fmt.Errorf("invalid export format %q (valid: json, csv, html, txt)", cfg.ExportFormat)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}

	return nil
}

func envOrDefaultStr(envKey, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return defaultVal
}

func envOrDefault(envKey string, defaultVal int) int {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
