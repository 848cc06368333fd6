/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables and an
 * optional .env file, providing a centralized and straightforward way to
 * manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	WalletEventExchange   string `mapstructure:"WALLET_EVENT_EXCHANGE"`
	PaystackAPIBaseURL    string `mapstructure:"PAYSTACK_API_BASE_URL"`
	PaystackSecretKey     string `mapstructure:"PAYSTACK_SECRET_KEY"`
	JWTSecret             string `mapstructure:"JWT_SECRET"`
	CORSAllowedOrigins    string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	WalletActiveOnCreate  bool   `mapstructure:"WALLET_ACTIVE_ON_CREATE"`
	TopUpReverifySchedule string `mapstructure:"TOPUP_REVERIFY_SCHEDULE"`
	TopUpReverifyMinAgeMin int   `mapstructure:"TOPUP_REVERIFY_MIN_AGE_MINUTES"`
	WebhookReplayTTLMin   int    `mapstructure:"WEBHOOK_REPLAY_TTL_MINUTES"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("WALLET_EVENT_EXCHANGE", "wallet_events")
	viper.SetDefault("PAYSTACK_API_BASE_URL", "https://api.paystack.co")
	// Newly created wallets require explicit activation before first use.
	viper.SetDefault("WALLET_ACTIVE_ON_CREATE", false)
	viper.SetDefault("TOPUP_REVERIFY_SCHEDULE", "*/10 * * * *")
	viper.SetDefault("TOPUP_REVERIFY_MIN_AGE_MINUTES", 15)
	viper.SetDefault("WEBHOOK_REPLAY_TTL_MINUTES", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("WALLET_EVENT_EXCHANGE")
	_ = viper.BindEnv("PAYSTACK_API_BASE_URL")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("WALLET_ACTIVE_ON_CREATE")
	_ = viper.BindEnv("TOPUP_REVERIFY_SCHEDULE")
	_ = viper.BindEnv("TOPUP_REVERIFY_MIN_AGE_MINUTES")
	_ = viper.BindEnv("WEBHOOK_REPLAY_TTL_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.PaystackSecretKey = strings.TrimSpace(config.PaystackSecretKey)

	if config.TopUpReverifyMinAgeMin <= 0 {
		config.TopUpReverifyMinAgeMin = 15
	}
	if config.WebhookReplayTTLMin <= 0 {
		config.WebhookReplayTTLMin = 60
	}
	if strings.TrimSpace(config.WalletEventExchange) == "" {
		config.WalletEventExchange = "wallet_events"
	}

	return
}
