package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env              string `yaml:"env" env:"ENV" env-default:"local"`
	Tokens           `yaml:"tokens"`
	Invites          `yaml:"invites"`
	IdentityProvider `yaml:"identity_provider"`
	RabbitMQ         `yaml:"rabbitmq"`
	Postgres         `yaml:"postgres"`
	SMTP             `yaml:"smtp"`
	HTTPServer       `yaml:"http_server"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Host     string `yaml:"host" env-default:"postgres"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-required:"true"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-required:"true"`
	DBName   string `yaml:"dbname" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

// Tokens configures the session credentials. Secrets have no default
// on purpose: a missing secret must fail startup, never degrade to a
// known value.
type Tokens struct {
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env-default:"168h"`
	Secret          string        `yaml:"secret" env:"TOKENS_SECRET" env-required:"true"`
}

type Invites struct {
	TokenTTL      time.Duration `yaml:"token_ttl" env-default:"168h"`
	Secret        string        `yaml:"secret" env:"INVITES_SECRET" env-required:"true"`
	FrontendURL   string        `yaml:"frontend_url" env-required:"true"`
	MaxRecipients int           `yaml:"max_recipients" env-default:"100"`
}

type IdentityProvider struct {
	TokenURL     string `yaml:"token_url" env-required:"true"`
	UserInfoURL  string `yaml:"user_info_url" env-required:"true"`
	ClientID     string `yaml:"client_id" env:"IDP_CLIENT_ID" env-required:"true"`
	ClientSecret string `yaml:"client_secret" env:"IDP_CLIENT_SECRET" env-required:"true"`
	RedirectURL  string `yaml:"redirect_url" env-required:"true"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL" env-required:"true"`
	QueueName string `yaml:"queue_name" env-default:"notifications"`
}

// SMTP is used by the mail worker only.
type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
}

func MustLoad(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("Config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("Failed to read config: " + err.Error())
	}

	return &cfg
}
