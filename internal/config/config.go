// Package config はnotifyhubの設定を環境変数と設定ファイルから読み込む。
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ストアのバックエンド種別。
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RedisConfig はRedis接続の設定。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	// Prefix は全キーの先頭に付与する文字列。
	Prefix string `mapstructure:"prefix"`
}

// NATSConfig は書き込みコマンドを配送するNATSの設定。
// URLが空の場合はプロセス内のワーカーで書き込みを適用する。
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// Config はサービス全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `mapstructure:"port"`
	// JWTSecret はJWTの署名検証に使う共有鍵。
	JWTSecret string `mapstructure:"jwt_secret"`
	// LogLevel はzapのログレベル。
	LogLevel string `mapstructure:"log_level"`
	// NodeID はID生成器のノード番号（0〜1023）。
	NodeID int64 `mapstructure:"node_id"`
	// CORSOrigins はクロスオリジンを許可するオリジン。
	CORSOrigins []string `mapstructure:"cors_origins"`
	// RuleCacheTTL はロールアップルールのスナップショットを再読み込みする間隔。
	RuleCacheTTL time.Duration `mapstructure:"rule_cache_ttl"`
	// WriteQueueSize はローカルの書き込みキューの長さ。
	WriteQueueSize int `mapstructure:"write_queue_size"`

	Store struct {
		Backend string `mapstructure:"backend"`
	} `mapstructure:"store"`
	Redis  RedisConfig `mapstructure:"redis"`
	SQLite struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"sqlite"`
	NATS NATSConfig `mapstructure:"nats"`
}

// setDefaults は全ての設定キーの既定値を登録する。
// AutomaticEnvはUnmarshal時に既知のキーしか参照しないため、全キーを登録する。
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8086")
	v.SetDefault("jwt_secret", "dev-secret-key")
	v.SetDefault("log_level", "info")
	v.SetDefault("node_id", 1)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("rule_cache_ttl", time.Minute)
	v.SetDefault("write_queue_size", 1024)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.prefix", "notifyhub:")
	v.SetDefault("sqlite.path", "/data/notifyhub.db")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "notifyhub.writes")
}

// Load は設定を読み込む。pathが空でなければYAML等の設定ファイルを読み込み、
// 環境変数（例: REDIS_ADDR）で上書きする。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.CORSOrigins = splitOrigins(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitOrigins はカンマ区切りで与えられたオリジンを展開する。
func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, o := range strings.Split(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// Validate は設定値が使用可能かを検証する。
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return errors.Errorf("node_id must be between 0 and 1023: %d", c.NodeID)
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis backend")
		}
	default:
		return errors.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.RuleCacheTTL <= 0 {
		return errors.Errorf("rule_cache_ttl must be positive: %s", c.RuleCacheTTL)
	}
	if c.WriteQueueSize <= 0 {
		return errors.Errorf("write_queue_size must be positive: %d", c.WriteQueueSize)
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return errors.New("nats.subject is required when nats.url is set")
	}
	return nil
}
