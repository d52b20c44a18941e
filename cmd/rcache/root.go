package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/rcache"
	"github.com/unkn0wn-root/rcache/config"
	asynchook "github.com/unkn0wn-root/rcache/hooks/async"
	rslog "github.com/unkn0wn-root/rcache/log/slog"
	"github.com/unkn0wn-root/rcache/sloghooks"
	"github.com/unkn0wn-root/rcache/version"
)

var (
	v     = viper.New()
	cache    rcache.Cache[any]
	versions version.Source
	hooks    *asynchook.Hooks

	rootCmd = &cobra.Command{
		Use:   "rcache",
		Short: "Inspect and edit a versioned Redis cache",
		Long: `rcache talks to the configured cache servers with the same key layout,
routing and serializer as the library. Settings come from flags, RCACHE_*
environment variables and .env / .env.local files.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
)

func init() {
	cobra.OnInitialize(func() {
		config.LoadEnvFiles()
		config.Init(v)
	})

	f := rootCmd.PersistentFlags()
	f.StringSlice("servers", nil, "cache servers (host:port:db or unix:path:db), comma separated")
	f.String("password", "", "server password")
	f.String("router", "", "auto, single, master-replica or ring")
	f.String("serializer", "", "json, msgpack or cbor")
	f.Int("serializer-version", 0, "serializer version (cbor >= 2 is deterministic)")
	f.String("key-prefix", "", "key prefix")
	f.Int("key-version", 0, "default key version")
	f.String("version-source", "", "static, redis (first server) or redis:<addr>")
	f.Int("timeout", 0, "default timeout in seconds")
	f.String("fallback", "", "fallback cache: ristretto, bigcache or redis:<addr>")
	f.String("log-format", "text", "log format: text or json")
	f.String("log-level", "warn", "log level: debug, info, warn or error")

	bind := map[string]string{
		config.KeyServers:           "servers",
		config.KeyPassword:          "password",
		config.KeyRouter:            "router",
		config.KeySerializer:        "serializer",
		config.KeySerializerVersion: "serializer-version",
		config.KeyPrefix:            "key-prefix",
		config.KeyVersion:           "key-version",
		config.KeyVersionSource:     "version-source",
		config.KeyTimeout:           "timeout",
		config.KeyFallback:          "fallback",
	}
	for key, flag := range bind {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(getCmd, setCmd, addCmd, delCmd, delPatternCmd, hasCmd,
		keysCmd, incrCmd, decrCmd, incrVersionCmd, nsVersionCmd, clearCmd)
}

func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q", format)
}

func setup(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("log-format")
	level, _ := cmd.Flags().GetString("log-level")
	l, err := newLogger(format, level)
	if err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	opts, err := config.Options[any](cfg)
	if err != nil {
		return err
	}
	opts.Logger = rslog.New(l)
	hooks = asynchook.New(sloghooks.New(l, sloghooks.Options{FallbackEvery: 10}), 1, 64)
	opts.Hooks = hooks
	versions = opts.Versions

	cache, err = rcache.New(opts)
	return err
}

func teardown(cmd *cobra.Command, _ []string) error {
	if cache == nil {
		return nil
	}
	err := cache.Close(cmd.Context())
	hooks.Close()
	return err
}

func execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
