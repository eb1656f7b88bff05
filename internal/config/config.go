package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings splices the database password into the URI
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs.
type Config struct {
	Env           string // application environment (e.g. "development", "production")
	Port          string // HTTP port to listen on
	MongoURI      string // connection string, may contain a <PASSWORD> placeholder
	MongoPassword string // password substituted into the placeholder (optional)
	MongoDB       string // database name
	JWTSecret     string // secret used to sign JWTs
	JWTTTLMin     int    // access token time-to-live in minutes
	CookieTTLDays int    // auth cookie lifetime in days
	BcryptCost    int    // bcrypt cost for password hashing
	EmailHost     string // SMTP host for outgoing mail
	EmailPort     int    // SMTP port
	EmailUsername string // SMTP username
	EmailPassword string // SMTP password
	EmailFrom     string // From header for outgoing mail
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		MongoURI:      must("MONGO_URI"),
		MongoPassword: os.Getenv("MONGO_PASSWORD"), // empty allowed when the URI has no placeholder
		MongoDB:       must("MONGO_DB"),
		JWTSecret:     must("JWT_SECRET"),
		JWTTTLMin:     mustInt("JWT_EXPIRES_MIN"),
		CookieTTLDays: mustInt("JWT_COOKIE_EXPIRES_DAYS"),
		BcryptCost:    mustInt("BCRYPT_COST"),
		EmailHost:     must("EMAIL_HOST"),
		EmailPort:     mustInt("EMAIL_PORT"),
		EmailUsername: os.Getenv("EMAIL_USERNAME"),
		EmailPassword: os.Getenv("EMAIL_PASSWORD"),
		EmailFrom:     must("EMAIL_FROM"),
	}
}

// DSN returns the Mongo connection string with the password placeholder
// replaced. Keeping the raw password out of MONGO_URI means the URI can be
// committed to an env template without leaking credentials.
func (c Config) DSN() string {
	return strings.Replace(c.MongoURI, "<PASSWORD>", c.MongoPassword, 1)
}

// IsProduction reports whether the app runs in production mode. Error
// responses hide internal details when this is true.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
