package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

type Config struct {
	Store          string   `json:"store" mapstructure:"store"`
	MongoURI       string   `json:"mongo_uri" mapstructure:"mongo_uri"`
	MongoDatabase  string   `json:"mongo_database" mapstructure:"mongo_database"`
	DBPath         string   `json:"db_path" mapstructure:"db_path"`
	Port           int      `json:"port" mapstructure:"port"`
	SendGridAPIKey string   `json:"sendgrid_api_key" mapstructure:"sendgrid_api_key"`
	MailFromName   string   `json:"mail_from_name" mapstructure:"mail_from_name"`
	MailFromEmail  string   `json:"mail_from_email" mapstructure:"mail_from_email"`
	JWTSecret      string   `json:"jwt_secret" mapstructure:"jwt_secret"`
	AuthRequired   bool     `json:"auth_required" mapstructure:"auth_required"`
	CORSOrigins    []string `json:"cors_origins" mapstructure:"cors_origins"`
	LogLevel       string   `json:"log_level" mapstructure:"log_level"`
}

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"store":            "STORE_DRIVER",
	"mongo_uri":        "MONGODB_CONNECT_URI",
	"mongo_database":   "MONGODB_DATABASE",
	"db_path":          "DB_PATH",
	"port":             "PORT",
	"sendgrid_api_key": "SENDGRID_API_KEY",
	"mail_from_name":   "MAIL_FROM_NAME",
	"mail_from_email":  "MAIL_FROM_EMAIL",
	"jwt_secret":       "JWT_SECRET",
	"auth_required":    "AUTH_REQUIRED",
	"cors_origins":     "CORS_ORIGINS",
	"log_level":        "LOG_LEVEL",
}

func Default() Config {
	return Config{
		Store:         DriverMongo,
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "todos",
		Port:          3000,
		MailFromName:  "no-reply",
		MailFromEmail: "no-reply@example.com",
		CORSOrigins:   []string{"*"},
		LogLevel:      "info",
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "todoserver", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Load reads the optional JSON config file at path, then applies a .env file
// in the working directory and the process environment on top of it.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("mongo_uri is required for the mongo store")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Save writes cfg as JSON. Secrets are left out; they are read from the
// environment.
func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	cfg.JWTSecret = ""
	cfg.SendGridAPIKey = ""

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("store", cfg.Store)
	v.SetDefault("mongo_uri", cfg.MongoURI)
	v.SetDefault("mongo_database", cfg.MongoDatabase)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("sendgrid_api_key", cfg.SendGridAPIKey)
	v.SetDefault("mail_from_name", cfg.MailFromName)
	v.SetDefault("mail_from_email", cfg.MailFromEmail)
	v.SetDefault("jwt_secret", cfg.JWTSecret)
	v.SetDefault("auth_required", cfg.AuthRequired)
	v.SetDefault("cors_origins", cfg.CORSOrigins)
	v.SetDefault("log_level", cfg.LogLevel)
}

// splitList flattens comma separated entries, which is how list values
// arrive from the environment.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
