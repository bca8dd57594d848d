package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Env    string
	Server struct {
		Addr         string
		MaxBodyBytes int64
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret      string
		TokenTTL       time.Duration
		ResetTTL       time.Duration
		BcryptCost     int
		CookieName     string
		CookieSameSite string
	}
	App struct {
		URL          string
		ResetURLBase string
	}
	CORS struct {
		Origins []string
	}
	Mail struct {
		Transport string
		From      string
		Workers   int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level  string
		Format string
	}
}

// IsProduction reports whether the service runs with production cookie and logging defaults.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// Validate checks the settings the service cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth jwt secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth token ttl must be positive")
	}
	if c.Auth.ResetTTL <= 0 {
		return errors.New("auth reset ttl must be positive")
	}
	switch c.Mail.Transport {
	case "log":
	case "s3":
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return errors.New("storage bucket is required for the s3 mail transport")
		}
	default:
		return fmt.Errorf("unknown mail transport %q", c.Mail.Transport)
	}
	return nil
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("ATTIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("server.maxbodybytes", 1<<20)
	v.SetDefault("database.path", "data/attire.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttl", "2160h")
	v.SetDefault("auth.resetttl", "10m")
	v.SetDefault("auth.bcryptcost", 12)
	v.SetDefault("auth.cookiename", "jwt")
	v.SetDefault("auth.cookiesamesite", "none")
	v.SetDefault("app.url", "https://attire-clothing.vercel.app/")
	v.SetDefault("app.reseturlbase", "http://localhost:5173/resetPassword")
	v.SetDefault("cors.origins", []string{"http://localhost:5173", "https://attire-clothing.vercel.app"})
	v.SetDefault("mail.transport", "log")
	v.SetDefault("mail.from", "Attire <no-reply@attire-clothing.vercel.app>")
	v.SetDefault("mail.workers", 2)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "mail-outbox")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.CORS.Origins = trimList(cfg.CORS.Origins)
	return cfg, nil
}

// trimList drops blanks left over from comma separated env values.
func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
