package config

import "time"

// StoreConfig selects and configures the durable key-value store used by
// the client ledgers.
type StoreConfig struct {
	Driver      string // memory | file | redis | mysql
	Path        string // file driver: JSON document path
	RedisPrefix string // redis driver: key prefix
	DBUser      string // mysql driver credentials
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
}

// ClientConfig drives the cinemacart CLI. Unlike the server it has no
// required variables: an empty APIBaseURL selects local-simulation mode.
type ClientConfig struct {
	Store         StoreConfig
	APIBaseURL    string        // REST API root, e.g. http://localhost:8080
	APITimeout    time.Duration // per-request HTTP timeout
	TokenTTL      time.Duration // local token lifetime
	CheckoutDelay time.Duration // simulated checkout round trip
	PublishEvents bool          // publish booking.confirmed after checkout
	AMQPURL       string
	LogLevel      string // debug | info | warn | error | off
}

// LoadClient reads the CLI configuration with defaults for every value.
func LoadClient() ClientConfig {
	loadDotEnv()
	return ClientConfig{
		Store: StoreConfig{
			Driver:      envStr("STORE_DRIVER", "file"),
			Path:        envStr("STORE_PATH", ".cinemacart.json"),
			RedisPrefix: envStr("STORE_REDIS_PREFIX", "cinemacart:"),
			DBUser:      envStr("DB_USER", "root"),
			DBPass:      envStr("DB_PASS", ""),
			DBHost:      envStr("DB_HOST", "127.0.0.1"),
			DBPort:      envStr("DB_PORT", "3306"),
			DBName:      envStr("DB_NAME", "cinema"),
		},
		APIBaseURL:    envStr("API_BASE_URL", ""),
		APITimeout:    envDur("API_TIMEOUT", 10*time.Second),
		TokenTTL:      envDur("TOKEN_TTL", 24*time.Hour),
		CheckoutDelay: envDur("CHECKOUT_DELAY", 0),
		PublishEvents: envBool("PUBLISH_EVENTS", false),
		AMQPURL:       AMQPURL(),
		LogLevel:      envStr("LOG_LEVEL", "warn"),
	}
}

// Simulated reports whether the client runs without a remote API.
func (c ClientConfig) Simulated() bool { return c.APIBaseURL == "" }
