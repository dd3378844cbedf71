package config

import (
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
)

type Config struct {
	Server              ServerConfig
	Database            DatabaseConfig
	Redis               RedisConfig
	Kafka               KafkaConfig
	Gateway             GatewayConfig
	CartService         ServiceConfig
	NotificationService ServiceConfig
	Features            FeatureFlags
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	OrdersTopic string
}

// GatewayConfig holds the payment-gateway merchant credentials and
// endpoints. HashKey and HashIV sign every outbound request and verify
// every inbound notification.
type GatewayConfig struct {
	MerchantID string
	HashKey    string
	HashIV     string
	Endpoint   string
	ReturnURL  string
	NotifyURL  string
}

// Validate reports missing credentials. A service started without signing
// secrets can neither charge nor verify, so this is checked at startup.
func (g GatewayConfig) Validate() error {
	var missing []string
	if g.MerchantID == "" {
		missing = append(missing, "GATEWAY_MERCHANT_ID")
	}
	if g.HashKey == "" {
		missing = append(missing, "GATEWAY_HASH_KEY")
	}
	if g.HashIV == "" {
		missing = append(missing, "GATEWAY_HASH_IV")
	}
	if len(missing) > 0 {
		return &apperrors.GatewayConfigError{Missing: missing}
	}
	return nil
}

type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
}

type FeatureFlags struct {
	EnableOrderCaching bool
	EnableOrderEvents  bool
}

// Load reads configuration from the environment with defaults.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", 8082)
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "stallwise")
	v.SetDefault("DB_PASSWORD", "stallwise")
	v.SetDefault("DB_NAME", "stallwise_orders")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MAX_LIFETIME", 300)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TTL", 300)

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_ORDERS_TOPIC", "orders.events")

	v.SetDefault("GATEWAY_ENDPOINT", "https://payment-stage.example.com/Cashier/AioCheckOut/V5")
	v.SetDefault("GATEWAY_RETURN_URL", "http://localhost:8082/orders/complete")
	v.SetDefault("GATEWAY_NOTIFY_URL", "http://localhost:8082/api/v1/payments/notify")

	v.SetDefault("CART_SERVICE_URL", "http://localhost:8084")
	v.SetDefault("CART_SERVICE_TIMEOUT", 10)
	v.SetDefault("NOTIFICATION_SERVICE_URL", "http://localhost:8085")
	v.SetDefault("NOTIFICATION_SERVICE_TIMEOUT", 10)

	v.SetDefault("FEATURE_ORDER_CACHING", true)
	v.SetDefault("FEATURE_ORDER_EVENTS", true)

	return &Config{
		Server: ServerConfig{
			Port:         v.GetInt("SERVER_PORT"),
			ReadTimeout:  time.Duration(v.GetInt("SERVER_READ_TIMEOUT")) * time.Second,
			WriteTimeout: time.Duration(v.GetInt("SERVER_WRITE_TIMEOUT")) * time.Second,
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxLifetime:  time.Duration(v.GetInt("DB_MAX_LIFETIME")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      time.Duration(v.GetInt("REDIS_TTL")) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:     v.GetStringSlice("KAFKA_BROKERS"),
			OrdersTopic: v.GetString("KAFKA_ORDERS_TOPIC"),
		},
		Gateway: GatewayConfig{
			MerchantID: v.GetString("GATEWAY_MERCHANT_ID"),
			HashKey:    v.GetString("GATEWAY_HASH_KEY"),
			HashIV:     v.GetString("GATEWAY_HASH_IV"),
			Endpoint:   v.GetString("GATEWAY_ENDPOINT"),
			ReturnURL:  v.GetString("GATEWAY_RETURN_URL"),
			NotifyURL:  v.GetString("GATEWAY_NOTIFY_URL"),
		},
		CartService: ServiceConfig{
			BaseURL: v.GetString("CART_SERVICE_URL"),
			Timeout: time.Duration(v.GetInt("CART_SERVICE_TIMEOUT")) * time.Second,
		},
		NotificationService: ServiceConfig{
			BaseURL: v.GetString("NOTIFICATION_SERVICE_URL"),
			Timeout: time.Duration(v.GetInt("NOTIFICATION_SERVICE_TIMEOUT")) * time.Second,
		},
		Features: FeatureFlags{
			EnableOrderCaching: v.GetBool("FEATURE_ORDER_CACHING"),
			EnableOrderEvents:  v.GetBool("FEATURE_ORDER_EVENTS"),
		},
	}
}
