package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogPretty bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, GATE_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and session-token
	// hashing must be HMAC-based.
	RequireTokenHMAC bool

	// TrustProxy enables X-Forwarded-For resolution in the API layer.
	TrustProxy bool

	// Admin credentials. Empty values leave the admin surface disabled.
	AdminUsername     string
	AdminPasswordHash string

	// ContentDir is scanned for content module assets (*.jpg, *.png).
	ContentDir string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("GATE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("GATE_LOG_LEVEL", "info"),
		LogPretty: EnvBool("GATE_LOG_PRETTY", false),

		ReadHeaderTimeout: EnvDuration("GATE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("GATE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("GATE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("GATE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("GATE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("GATE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("GATE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("GATE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("GATE_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("GATE_REQUIRE_TOKEN_HMAC", false),

		TrustProxy: EnvBool("GATE_TRUST_PROXY", false),

		AdminUsername:     EnvString("GATE_ADMIN_USERNAME", ""),
		AdminPasswordHash: EnvString("GATE_ADMIN_PASSWORD_HASH", ""),

		ContentDir: EnvString("GATE_CONTENT_DIR", "content"),
	}
}
