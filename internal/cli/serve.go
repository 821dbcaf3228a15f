package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/evanhutnik/geocode-proxy/internal/cache"
	"github.com/evanhutnik/geocode-proxy/internal/config"
	"github.com/evanhutnik/geocode-proxy/internal/geocoder"
	"github.com/evanhutnik/geocode-proxy/internal/geoproxy"
	"github.com/evanhutnik/geocode-proxy/internal/provider"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var serveFlags config.Config

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the geocode proxy server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := serveConfig(cmd.Flags(), serveFlags)

		logger, err := newLogger(cfg.Env)
		if err != nil {
			return err
		}
		defer logger.Sync()

		svc, closeFn, err := buildService(cfg, logger)
		if err != nil {
			logger.Errorw("Failed to start geoproxy: "+err.Error(), "services", cfg.ServicesFile)
			return err
		}
		defer closeFn()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return svc.Start(ctx)
	},
}

func init() {
	bindServeFlags(serveCmd.Flags(), &serveFlags)
	rootCmd.AddCommand(serveCmd)
}

func bindServeFlags(f *pflag.FlagSet, v *config.Config) {
	f.StringVarP(&v.Server, "server", "s", "0.0.0.0", "server address")
	f.IntVarP(&v.Port, "port", "p", 8088, "server port")
	f.StringVar(&v.ServicesFile, "services", "services.json", "provider definitions file (json or yaml)")
	f.StringVar(&v.SecretsFile, "secrets", "services.secrets.json", "provider secrets file (json or yaml)")
	f.StringVar(&v.Primary, "primary", "", "name of the primary provider")
	f.IntVar(&v.CacheSize, "cache-size", cache.DefaultCapacity, "number of addresses kept in the response cache")
	f.DurationVar(&v.ProviderTimeout, "provider-timeout", provider.DefaultTimeout, "timeout of a single provider lookup")
	f.StringVar(&v.RedisAddress, "redis", "", "redis address for the shared cache, empty disables it")
}

// serveConfig reads the environment (and .env) and lets explicitly set flags override it.
func serveConfig(f *pflag.FlagSet, flags config.Config) config.Config {
	cfg := config.FromEnv()
	if f.Changed("server") {
		cfg.Server = flags.Server
	}
	if f.Changed("port") {
		cfg.Port = flags.Port
	}
	if f.Changed("services") {
		cfg.ServicesFile = flags.ServicesFile
	}
	if f.Changed("secrets") {
		cfg.SecretsFile = flags.SecretsFile
	}
	if f.Changed("primary") {
		cfg.Primary = flags.Primary
	}
	if f.Changed("cache-size") {
		cfg.CacheSize = flags.CacheSize
	}
	if f.Changed("provider-timeout") {
		cfg.ProviderTimeout = flags.ProviderTimeout
	}
	if f.Changed("redis") {
		cfg.RedisAddress = flags.RedisAddress
	}
	return cfg
}

// buildService validates the whole provider configuration before anything is served. The
// returned func releases the redis connection, if any.
func buildService(cfg config.Config, logger *zap.SugaredLogger) (*geoproxy.Service, func(), error) {
	loaded, err := config.LoadProviders(cfg.ServicesFile, cfg.SecretsFile)
	if err != nil {
		return nil, nil, err
	}

	requested := cfg.Primary
	if requested == "" {
		requested = loaded.Primary
	}
	ordered, err := geocoder.Order(loaded.Configs, requested, logger)
	if err != nil {
		return nil, nil, err
	}

	providers := make([]geocoder.Provider, len(ordered))
	for i, pc := range ordered {
		providers[i] = provider.New(pc,
			provider.TimeoutOption(cfg.ProviderTimeout),
			provider.LoggerOption(logger),
		)
	}
	g, err := geocoder.New(providers, geocoder.LoggerOption(logger))
	if err != nil {
		return nil, nil, err
	}

	opts := []geoproxy.ServiceOption{
		geoproxy.AddrOption(cfg.Addr()),
		geoproxy.LoggerOption(logger),
		geoproxy.CacheOption(cache.NewFIFO(cfg.CacheSize, cache.LoggerOption(logger))),
	}
	closeFn := func() {}
	if cfg.RedisAddress != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		opts = append(opts, geoproxy.RemoteCacheOption(cache.NewRedis(rc, cfg.RedisTTL, cache.RedisLoggerOption(logger))))
		closeFn = func() {
			if err := rc.Close(); err != nil {
				logger.Warnw(fmt.Sprintf("Error closing redis client: %v", err))
			}
		}
	}

	logger.Infow("geocoding providers configured", "order", g.Providers())
	return geoproxy.New(g, opts...), closeFn, nil
}
