package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// const dsn = "host=localhost user=postgres password=password dbname=tourledger port=5432 sslmode=disable TimeZone=UTC"

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
	MaxIdle  int
	MaxOpen  int
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone)
}

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookSecretArn string
	Currency         string
	SuccessURL       string
	CancelURL        string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type AWSConfig struct {
	Region         string
	IAMRoleArn     string
	EventsQueue    string
	SecretsBucket  string
	CredentialsKey string
}

type Config struct {
	APIEnv          string
	Port            string
	AppHost         string
	MaintenanceMode bool
	JWTSecret       string
	CronSecret      string
	CronInProcess   bool
	CronAt          string
	Mailer          string
	KafkaBroker     string
	EventsTopic     string
	RedisURL        string
	CatalogURL      string
	CatalogTTL      time.Duration
	SecretsDir      string
	LogDir          string
	DepositDueDays  int
	BalanceLeadDays int
	GiftCardDays    int

	Database DatabaseConfig
	Stripe   StripeConfig
	SMTP     SMTPConfig
	AWS      AWSConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_ENV", "local")
	v.SetDefault("PORT", "8080")
	v.SetDefault("MAINTENANCE_MODE", false)
	v.SetDefault("CRON_IN_PROCESS", false)
	v.SetDefault("CRON_AT", "09:00:00")
	v.SetDefault("MAILER", "smtp")
	v.SetDefault("EVENTS_TOPIC", "BookingUpdates")
	v.SetDefault("CATALOG_CACHE_TTL", 5*time.Minute)
	v.SetDefault("SECRETS_DIR", "/secrets")
	v.SetDefault("LOG_DIR", "logs")
	v.SetDefault("DEPOSIT_DUE_DAYS", 7)
	v.SetDefault("BALANCE_LEAD_DAYS", 30)
	v.SetDefault("GIFT_CARD_VALIDITY_DAYS", 365)
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_TIMEZONE", "UTC")
	v.SetDefault("DATABASE_MAX_IDLE", 10)
	v.SetDefault("DATABASE_MAX_OPEN", 100)
	v.SetDefault("STRIPE_CURRENCY", "usd")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("AWS_REGION", "ap-southeast-1")
	v.SetDefault("AWS_EVENTS_QUEUE", "BookingUpdates")
	v.SetDefault("S3_CREDENTIALS_KEY", "admin-sdk-credentials.json")
}

// Load reads configuration from the environment, falling back to an optional .env file.
func Load() *Config {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using environment: %s\n", err.Error())
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		APIEnv:          v.GetString("API_ENV"),
		Port:            v.GetString("PORT"),
		AppHost:         v.GetString("APP_HOST"),
		MaintenanceMode: v.GetBool("MAINTENANCE_MODE"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		CronSecret:      v.GetString("CRON_SECRET"),
		CronInProcess:   v.GetBool("CRON_IN_PROCESS"),
		CronAt:          v.GetString("CRON_AT"),
		Mailer:          v.GetString("MAILER"),
		KafkaBroker:     v.GetString("KAFKA_BROKER"),
		EventsTopic:     v.GetString("EVENTS_TOPIC"),
		RedisURL:        v.GetString("REDIS_HOST"),
		CatalogURL:      v.GetString("CATALOG_URL"),
		CatalogTTL:      v.GetDuration("CATALOG_CACHE_TTL"),
		SecretsDir:      v.GetString("SECRETS_DIR"),
		LogDir:          v.GetString("LOG_DIR"),
		DepositDueDays:  v.GetInt("DEPOSIT_DUE_DAYS"),
		BalanceLeadDays: v.GetInt("BALANCE_LEAD_DAYS"),
		GiftCardDays:    v.GetInt("GIFT_CARD_VALIDITY_DAYS"),
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetString("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
			TimeZone: v.GetString("DATABASE_TIMEZONE"),
			MaxIdle:  v.GetInt("DATABASE_MAX_IDLE"),
			MaxOpen:  v.GetInt("DATABASE_MAX_OPEN"),
		},
		Stripe: StripeConfig{
			SecretKey:        v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:    v.GetString("STRIPE_WEBHOOK_SECRET"),
			WebhookSecretArn: v.GetString("STRIPE_WEBHOOK_SECRET_ARN"),
			Currency:         v.GetString("STRIPE_CURRENCY"),
			SuccessURL:       v.GetString("STRIPE_SUCCESS_URL"),
			CancelURL:        v.GetString("STRIPE_CANCEL_URL"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
			FromName: v.GetString("SMTP_FROM_NAME"),
		},
		AWS: AWSConfig{
			Region:         v.GetString("AWS_REGION"),
			IAMRoleArn:     v.GetString("AWS_IAM_ROLE_ARN"),
			EventsQueue:    v.GetString("AWS_EVENTS_QUEUE"),
			SecretsBucket:  v.GetString("S3_SECRETS_BUCKET"),
			CredentialsKey: v.GetString("S3_CREDENTIALS_KEY"),
		},
	}
}

func (c *Config) IsProd() bool {
	return c.APIEnv == "production" || c.APIEnv == "test"
}
