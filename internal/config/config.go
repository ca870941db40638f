package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	DataDir string // directory holding the table files
	AdminID int64  // chat-platform id flagged admin at startup

	ProbeTimeout      time.Duration // bound on a single status probe (default: 8s)
	RestartDelay      time.Duration // wait before an auto-restart re-entry (default: 30s)
	PollInterval      time.Duration // liveness poll spacing on open watchers (default: 30s)
	ReconcileInterval time.Duration // interval between reconciliation sweeps (default: 6h)

	AllowedCIDRS []string // optional, restrict ops endpoints to specific IPs
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("WARDEN_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("WARDEN_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("WARDEN_LOG_LEVEL", "info"),
		PrettyLog: mustBool("WARDEN_PRETTY_LOG", true),

		// Persistence
		DataDir: getenv("WARDEN_DATA_DIR", "/app/data"),
		AdminID: requireEnvInt64("WARDEN_ADMIN_ID"),

		// Watcher timings
		ProbeTimeout:      mustDuration("WARDEN_PROBE_TIMEOUT", 8*time.Second),
		RestartDelay:      mustDuration("WARDEN_RESTART_DELAY", 30*time.Second),
		PollInterval:      mustDuration("WARDEN_POLL_INTERVAL", 30*time.Second),
		ReconcileInterval: mustDuration("WARDEN_RECONCILE_INTERVAL", 6*time.Hour),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("WARDEN_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("WARDEN_TRUST_PROXY", true),
	}

	// Log config only in debug mode
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", *cfg)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnvInt64(key string) int64 {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
