// Package config loads treereplay settings.
//
// Settings are read from a TOML file, then overridden by TREEREPLAY_*
// environment variables. Command-line flags are applied by the caller on
// top of the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/treereplay/pkg/cache"
	"github.com/matzehuels/treereplay/pkg/layout"
	"github.com/matzehuels/treereplay/pkg/session"
	"github.com/matzehuels/treereplay/pkg/timeline"
)

const appName = "treereplay"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TREEREPLAY_"

// Duration is a time.Duration that decodes from strings such as "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Classroom ClassroomConfig `toml:"classroom"`
	Chat      ChatConfig      `toml:"chat"`
	Cache     CacheConfig     `toml:"cache"`
	Session   SessionConfig   `toml:"session"`
	Replay    ReplayConfig    `toml:"replay"`
}

type ServerConfig struct {
	Addr       string   `toml:"addr"`
	JWTSecret  string   `toml:"jwt_secret"`
	SessionTTL Duration `toml:"session_ttl"`
}

type ClassroomConfig struct {
	BaseURL   string  `toml:"base_url"`
	RateLimit float64 `toml:"rate_limit"` // requests per second; 0 disables limiting
}

type ChatConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type CacheConfig struct {
	Backend       string `toml:"backend"` // file, redis, mongo or none
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

type SessionConfig struct {
	Backend string `toml:"backend"` // memory, file or redis
	Dir     string `toml:"dir"`
}

type ReplayConfig struct {
	Speed         string   `toml:"speed"`
	AutoplayDelay Duration `toml:"autoplay_delay"`
	MaxPasses     int      `toml:"max_passes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:       ":8080",
			SessionTTL: Duration{session.DefaultTTL},
		},
		Cache:   CacheConfig{Backend: cache.BackendFile},
		Session: SessionConfig{Backend: "memory"},
		Replay: ReplayConfig{
			Speed:         string(timeline.DefaultSpeed),
			AutoplayDelay: Duration{timeline.DefaultAutoplayDelay},
			MaxPasses:     layout.DefaultMaxPasses,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/treereplay/config.toml, falling back
// to ~/.config.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the file at path over the defaults and applies environment
// overrides. An empty path uses [DefaultPath]; a missing default file is
// not an error, a missing explicit file is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if _, err := timeline.ParseSpeed(c.Replay.Speed); err != nil {
		return err
	}
	if c.Replay.AutoplayDelay.Duration <= 0 {
		return fmt.Errorf("replay.autoplay_delay must be positive")
	}
	if c.Replay.MaxPasses < 1 {
		return fmt.Errorf("replay.max_passes must be at least 1")
	}
	if c.Classroom.RateLimit < 0 {
		return fmt.Errorf("classroom.rate_limit must not be negative")
	}
	return nil
}

// CacheOptions converts the cache section for [cache.Open].
func (c Config) CacheOptions() cache.Config {
	return cache.Config{
		Backend:       c.Cache.Backend,
		Dir:           c.Cache.Dir,
		RedisAddr:     c.Cache.RedisAddr,
		MongoURI:      c.Cache.MongoURI,
		MongoDatabase: c.Cache.MongoDatabase,
		Prefix:        appName + ":",
	}
}

// SessionOptions converts the session section for [session.Open]. The
// redis session store shares the cache's redis address.
func (c Config) SessionOptions() session.Config {
	return session.Config{
		Dir:   c.Session.Dir,
		Redis: session.RedisConfig{Addr: c.Cache.RedisAddr},
	}
}

// Speed returns the configured default playback speed.
func (c Config) Speed() timeline.Speed {
	s, err := timeline.ParseSpeed(c.Replay.Speed)
	if err != nil {
		return timeline.DefaultSpeed
	}
	return s
}

// =============================================================================
// Environment overrides
// =============================================================================

type envVar struct {
	key string
	set func(string) error
}

func (c *Config) envVars() []envVar {
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	dur := func(dst *Duration) func(string) error {
		return func(v string) error { return dst.UnmarshalText([]byte(v)) }
	}
	return []envVar{
		{"SERVER_ADDR", str(&c.Server.Addr)},
		{"SERVER_JWT_SECRET", str(&c.Server.JWTSecret)},
		{"SERVER_SESSION_TTL", dur(&c.Server.SessionTTL)},
		{"CLASSROOM_BASE_URL", str(&c.Classroom.BaseURL)},
		{"CLASSROOM_RATE_LIMIT", func(v string) error {
			f, err := strconv.ParseFloat(v, 64)
			c.Classroom.RateLimit = f
			return err
		}},
		{"CHAT_BASE_URL", str(&c.Chat.BaseURL)},
		{"CHAT_API_KEY", str(&c.Chat.APIKey)},
		{"CACHE_BACKEND", str(&c.Cache.Backend)},
		{"CACHE_DIR", str(&c.Cache.Dir)},
		{"CACHE_REDIS_ADDR", str(&c.Cache.RedisAddr)},
		{"CACHE_MONGO_URI", str(&c.Cache.MongoURI)},
		{"CACHE_MONGO_DATABASE", str(&c.Cache.MongoDatabase)},
		{"SESSION_BACKEND", str(&c.Session.Backend)},
		{"SESSION_DIR", str(&c.Session.Dir)},
		{"REPLAY_SPEED", func(v string) error { c.Replay.Speed = strings.ToUpper(v); return nil }},
		{"REPLAY_AUTOPLAY_DELAY", dur(&c.Replay.AutoplayDelay)},
		{"REPLAY_MAX_PASSES", func(v string) error {
			n, err := strconv.Atoi(v)
			c.Replay.MaxPasses = n
			return err
		}},
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range c.envVars() {
		v, ok := lookup(EnvPrefix + ev.key)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, ev.key, err)
		}
	}
	return nil
}
