package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BroadcastLocal = "local"
	BroadcastRedis = "redis"
)

type Config struct {
	Addr            string
	DatabaseDSN     string
	JWTSecret       string
	JWTIssuer       string
	RedisAddr       string
	BroadcastMode   string
	AllowedOrigins  []string
	LogLevel        string
	ShutdownTimeout time.Duration
	Chat            ChatConfig
}

// ChatConfig tunes each WebSocket session.
type ChatConfig struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	StoreTimeout   time.Duration
	ChannelPrefix  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("broadcast_mode", BroadcastLocal)
	v.SetDefault("jwt_issuer", "")
	v.SetDefault("allowed_origins", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("max_message_size", 64*1024)
	v.SetDefault("write_wait", 10*time.Second)
	v.SetDefault("pong_wait", 60*time.Second)
	v.SetDefault("store_timeout", 5*time.Second)
	v.SetDefault("channel_prefix", "chat:")
}

// Load reads defaults, an optional config.yaml and the environment (DB_DSN, JWT_SECRET, ...).
func Load() (*Config, error) {
	return load(".", "./config")
}

func load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Addr:            v.GetString("addr"),
		DatabaseDSN:     v.GetString("db_dsn"),
		JWTSecret:       v.GetString("jwt_secret"),
		JWTIssuer:       v.GetString("jwt_issuer"),
		RedisAddr:       v.GetString("redis_addr"),
		BroadcastMode:   strings.ToLower(v.GetString("broadcast_mode")),
		AllowedOrigins:  stringList(v, "allowed_origins"),
		LogLevel:        v.GetString("log_level"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		Chat: ChatConfig{
			SendBuffer:     v.GetInt("send_buffer"),
			MaxMessageSize: v.GetInt64("max_message_size"),
			WriteWait:      v.GetDuration("write_wait"),
			PongWait:       v.GetDuration("pong_wait"),
			StoreTimeout:   v.GetDuration("store_timeout"),
			ChannelPrefix:  v.GetString("channel_prefix"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("DB_DSN is not set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	switch c.BroadcastMode {
	case BroadcastLocal, BroadcastRedis:
	default:
		return fmt.Errorf("unknown BROADCAST_MODE %q", c.BroadcastMode)
	}
	if c.Chat.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.Chat.SendBuffer)
	}
	if c.Chat.PongWait <= 0 || c.Chat.WriteWait <= 0 {
		return errors.New("PONG_WAIT and WRITE_WAIT must be positive")
	}
	return nil
}

// stringList accepts both a YAML list and a comma separated string (the env form).
func stringList(v *viper.Viper, key string) []string {
	switch v.Get(key).(type) {
	case []any, []string:
		return splitList(strings.Join(v.GetStringSlice(key), ","))
	default:
		return splitList(v.GetString(key))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
