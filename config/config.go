// Package config loads rcache settings from flags, environment variables and
// .env files through viper, and turns them into rcache.Options.
//
// Every setting can be given as RCACHE_<NAME>, e.g. RCACHE_SERVERS or
// RCACHE_FALLBACK_CALLS.
package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/rcache"
	"github.com/unkn0wn-root/rcache/codec"
	"github.com/unkn0wn-root/rcache/provider"
	"github.com/unkn0wn-root/rcache/provider/bigcache"
	predis "github.com/unkn0wn-root/rcache/provider/redis"
	"github.com/unkn0wn-root/rcache/provider/ristretto"
	"github.com/unkn0wn-root/rcache/router"
	rstore "github.com/unkn0wn-root/rcache/store/redis"
	"github.com/unkn0wn-root/rcache/version"
)

const EnvPrefix = "rcache"

// Setting names.
const (
	KeyServers           = "servers"
	KeyPassword          = "password"
	KeySerializer        = "serializer"
	KeySerializerVersion = "serializer_version"
	KeyRouter            = "router"
	KeyFallback          = "fallback"
	KeyFallbackCalls     = "fallback_calls"
	KeyFallbackSizeMB    = "fallback_size_mb"
	KeyPrefix            = "key_prefix"
	KeyVersion           = "version"
	KeyVersionSource     = "version_source"
	KeyTimeout           = "timeout"
)

// Fallback kinds.
const (
	FallbackNone      = ""
	FallbackRistretto = "ristretto"
	FallbackBigCache  = "bigcache"
	FallbackRedis     = "redis"
)

// Version sources.
const (
	VersionStatic = "static"
	VersionRedis  = "redis"
)

// Config is the validated configuration.
type Config struct {
	Servers           []string
	Password          string
	Serializer        string
	SerializerVersion int
	Router            router.Kind
	KeyPrefix         string
	Version           int
	VersionSource     string // VersionStatic or VersionRedis
	VersionAddr       string // counter node for VersionRedis, first server if empty
	Timeout           time.Duration // 0 => rcache default

	Fallback       string // one of the Fallback* kinds
	FallbackAddr   string // node address for FallbackRedis
	FallbackCalls  int
	FallbackSizeMB int
}

// LoadEnvFiles loads .env files into the process environment. Missing files
// are skipped and variables already set are kept.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Init sets defaults on v and binds it to RCACHE_* environment variables.
func Init(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyServers, []string{"127.0.0.1:6379:0"})
	v.SetDefault(KeySerializer, "json")
	v.SetDefault(KeySerializerVersion, "0")
	v.SetDefault(KeyRouter, "auto")
	v.SetDefault(KeyVersion, "1")
	v.SetDefault(KeyVersionSource, VersionStatic)
	v.SetDefault(KeyTimeout, "300")
	v.SetDefault(KeyFallbackCalls, strconv.Itoa(rcache.DefaultFallbackCalls))
	v.SetDefault(KeyFallbackSizeMB, "64")
}

// Load reads and validates the settings held by v. Malformed values are
// reported as *rcache.ConfigError naming the setting.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Servers:    servers(v.GetStringSlice(KeyServers)),
		Password:   v.GetString(KeyPassword),
		Serializer: strings.ToLower(strings.TrimSpace(v.GetString(KeySerializer))),
		KeyPrefix:  v.GetString(KeyPrefix),
	}
	if len(cfg.Servers) == 0 {
		return nil, &rcache.ConfigError{Field: KeyServers, Err: errors.New("no servers configured")}
	}
	for _, s := range cfg.Servers {
		if _, err := rstore.ParseAddress(s); err != nil {
			return nil, &rcache.ConfigError{Field: KeyServers, Err: err}
		}
	}

	var err error
	if cfg.Router, err = router.ParseKind(v.GetString(KeyRouter)); err != nil {
		return nil, &rcache.ConfigError{Field: KeyRouter, Err: err}
	}
	if cfg.SerializerVersion, err = intSetting(v, KeySerializerVersion, 0); err != nil {
		return nil, err
	}
	if cfg.Version, err = intSetting(v, KeyVersion, 1); err != nil {
		return nil, err
	}
	secs, err := intSetting(v, KeyTimeout, 0)
	if err != nil {
		return nil, err
	}
	cfg.Timeout = time.Duration(secs) * time.Second
	if cfg.FallbackCalls, err = intSetting(v, KeyFallbackCalls, 1); err != nil {
		return nil, err
	}
	if cfg.FallbackSizeMB, err = intSetting(v, KeyFallbackSizeMB, 1); err != nil {
		return nil, err
	}
	if cfg.Fallback, cfg.FallbackAddr, err = parseFallback(v.GetString(KeyFallback)); err != nil {
		return nil, &rcache.ConfigError{Field: KeyFallback, Err: err}
	}
	if cfg.VersionSource, cfg.VersionAddr, err = parseVersionSource(v.GetString(KeyVersionSource)); err != nil {
		return nil, &rcache.ConfigError{Field: KeyVersionSource, Err: err}
	}
	if _, err := codec.ByName[any](cfg.Serializer, cfg.SerializerVersion); err != nil && cfg.Serializer != "string" {
		return nil, &rcache.ConfigError{Field: KeySerializer, Err: err}
	}
	return cfg, nil
}

// servers accepts both list values and comma separated strings.
func servers(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, s := range strings.Split(r, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func intSetting(v *viper.Viper, key string, min int) (int, error) {
	s := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &rcache.ConfigError{Field: key, Err: fmt.Errorf("%q is not an integer", s)}
	}
	if n < min {
		return 0, &rcache.ConfigError{Field: key, Err: fmt.Errorf("%d is below %d", n, min)}
	}
	return n, nil
}

// parseFallback accepts "", "ristretto", "bigcache" and "redis:<address>".
func parseFallback(s string) (kind, addr string, err error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case FallbackNone, "none":
		return FallbackNone, "", nil
	case FallbackRistretto, FallbackBigCache:
		return strings.ToLower(s), "", nil
	}
	if rest, ok := strings.CutPrefix(s, FallbackRedis+":"); ok {
		if _, err := rstore.ParseAddress(rest); err != nil {
			return "", "", err
		}
		return FallbackRedis, rest, nil
	}
	return "", "", fmt.Errorf("unknown fallback %q", s)
}

// parseVersionSource accepts "static", "redis" and "redis:<address>".
func parseVersionSource(s string) (kind, addr string, err error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", VersionStatic:
		return VersionStatic, "", nil
	case VersionRedis:
		return VersionRedis, "", nil
	}
	if rest, ok := strings.CutPrefix(s, VersionRedis+":"); ok {
		if _, err := rstore.ParseAddress(rest); err != nil {
			return "", "", err
		}
		return VersionRedis, rest, nil
	}
	return "", "", fmt.Errorf("unknown version source %q", s)
}

// Versions opens the configured version source. A Redis source keeps its
// counter under the key prefix (or "default") and owns its client.
func Versions(cfg *Config) (version.Source, error) {
	if cfg.VersionSource != VersionRedis {
		return version.Static(cfg.Version), nil
	}
	node := cfg.VersionAddr
	if node == "" && len(cfg.Servers) > 0 {
		node = cfg.Servers[0]
	}
	addr, err := rstore.ParseAddress(node)
	if err != nil {
		return nil, &rcache.ConfigError{Field: KeyVersionSource, Err: err}
	}
	ns := cfg.KeyPrefix
	if ns == "" {
		ns = "default"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Network:  addr.Network,
		Addr:     addr.Addr,
		DB:       addr.DB,
		Password: cfg.Password,
	})
	return version.NewRedis(rdb, ns, cfg.Version).Owned(), nil
}

// Options builds the client options for value type V. The serializer must
// support V ("string" only works for V = string).
func Options[V any](cfg *Config) (rcache.Options[V], error) {
	cd, err := codec.ByName[V](cfg.Serializer, cfg.SerializerVersion)
	if err != nil {
		return rcache.Options[V]{}, &rcache.ConfigError{Field: KeySerializer, Err: err}
	}
	vs, err := Versions(cfg)
	if err != nil {
		return rcache.Options[V]{}, err
	}
	opts := rcache.Options[V]{
		Nodes:         cfg.Servers,
		Dialer:        rstore.Dialer(rstore.Config{Password: cfg.Password}),
		Router:        cfg.Router,
		Codec:         cd,
		KeyPrefix:     cfg.KeyPrefix,
		Version:       cfg.Version,
		Versions:      vs,
		Timeout:       cfg.Timeout,
		FallbackCalls: cfg.FallbackCalls,
	}
	if cfg.Fallback != FallbackNone {
		opts.Fallback = fallback(cfg, cd)
	}
	return opts, nil
}

func fallback[V any](cfg *Config, cd codec.Codec[V]) func() (rcache.Secondary[V], error) {
	return func() (rcache.Secondary[V], error) {
		p, err := Provider(cfg)
		if err != nil {
			return nil, err
		}
		pc, err := rcache.NewProviderCache(p, cd, rcache.ProviderOptions{
			KeyPrefix: cfg.KeyPrefix,
			Version:   cfg.Version,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			_ = p.Close(context.Background())
			return nil, err
		}
		return pc, nil
	}
}

// Provider opens the byte store behind the configured fallback.
func Provider(cfg *Config) (provider.Provider, error) {
	size := int64(cfg.FallbackSizeMB) << 20
	switch cfg.Fallback {
	case FallbackRistretto:
		return ristretto.New(ristretto.DefaultConfig(size))
	case FallbackBigCache:
		return bigcache.New(context.Background(), bigcache.Config{HardMaxCacheSizeMB: cfg.FallbackSizeMB})
	case FallbackRedis:
		return predis.New(predis.Config{Addr: cfg.FallbackAddr, Password: cfg.Password})
	}
	return nil, fmt.Errorf("config: no fallback provider for %q", cfg.Fallback)
}
