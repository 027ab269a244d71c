package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers understood by StoreDriver.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations are parsed with time.ParseDuration.
type Config struct {
	Env         string // application environment (e.g. "dev", "prod")
	Port        string // HTTP port to listen on
	StoreDriver string // "mysql" (default) or "memory"
	DBUser      string // database username
	DBPass      string // database password (optional)
	DBHost      string // database host address
	DBPort      string // database port number
	DBName      string // database name

	JWTSecret    string        // secret used to sign session tokens
	SessionTTL   time.Duration // lifetime of the session cookie
	CookieSecure bool          // Secure flag on the session cookie; off only for local http
	BcryptCost   int           // bcrypt cost for password hashing

	OTPTTL    time.Duration // lifetime of an emailed sign-up code
	ResetTTL  time.Duration // lifetime of a password reset token
	InviteTTL time.Duration // lifetime of a team invite

	BaseURL string // public origin used in emailed links

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string

	AMQPURL string // RabbitMQ url; empty sends mail inline

	PlatformAdminEmails []string // lower-cased emails granted platform-admin
	AdminSecret         string   // shared secret accepted in X-Team-Token

	LogLevel string
}

// IsProd reports whether the process runs in production.
func (c Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when
// present; real environment variables win over it.  Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:         must("APP_ENV"),
		Port:        must("APP_PORT"),
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),

		JWTSecret:    must("JWT_SECRET"),
		SessionTTL:   envDur("SESSION_TTL", 7*24*time.Hour),
		CookieSecure: envBool("COOKIE_SECURE", true),
		BcryptCost:   envInt("BCRYPT_COST", 10),

		OTPTTL:    envDur("OTP_TTL", 5*time.Minute),
		ResetTTL:  envDur("RESET_TTL", 30*time.Minute),
		InviteTTL: envDur("INVITE_TTL", 7*24*time.Hour),

		BaseURL: strings.TrimRight(envStr("BASE_URL", "http://localhost:5173"), "/"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: envStr("SMTP_PORT", "587"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		MailFrom: envStr("MAIL_FROM", "no-reply@localhost"),

		AMQPURL: os.Getenv("RABBITMQ_URL"),

		PlatformAdminEmails: splitList(os.Getenv("PLATFORM_ADMIN_EMAILS")),
		AdminSecret:         os.Getenv("ADMIN_SECRET"),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
	if cfg.StoreDriver == StoreMySQL {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// splitList parses a comma separated list, lower-casing and dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
