package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"brokerdesk-go/internal/api"
	"brokerdesk-go/internal/auth"
	"brokerdesk-go/internal/cache"
	"brokerdesk-go/internal/chat"
	"brokerdesk-go/internal/config"
	"brokerdesk-go/internal/database"
	"brokerdesk-go/internal/docstore"
	"brokerdesk-go/internal/formance"
	"brokerdesk-go/internal/httpclient"
	"brokerdesk-go/internal/metrics"
	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/pricing"
	"brokerdesk-go/internal/prime"
	"brokerdesk-go/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const hubBuffer = 32

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also come from the shell or the container runtime.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("Loaded environment variables from .env file")
	}
}

// Services is everything a brokerdesk process needs, built once from config.
type Services struct {
	Config  *models.Config
	Store   store.BrokerStore
	Assets  models.AssetCatalog
	Metrics *metrics.Metrics
	Feed    *pricing.Feed
	Cache   *cache.QuoteCache
	Hub     *chat.Hub
	Ledger  *formance.Service
	Custody *prime.Service
	Broker  *api.BrokerService
}

// InitializeLogger builds the global JSON logger. Output goes to stderr and, when
// LOG_FILE is set, to a rotated file as well.
func InitializeLogger(cfg models.LogConfig) (*zap.Logger, func()) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		log.Printf("Unknown LOG_LEVEL %q, using info\n", cfg.Level)
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)}
	var rotator *lumberjack.Logger
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
		if rotator != nil {
			_ = rotator.Close()
		}
	}

	return logger, cleanup
}

// InitializeStore opens the configured backend and seeds the demo accounts when asked to.
func InitializeStore(ctx context.Context, cfg *models.Config) (store.BrokerStore, error) {
	var (
		st   store.BrokerStore
		seed bool
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		svc, err := database.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		st, seed = svc, cfg.Database.SeedDemoUsers
	case config.BackendDocument:
		svc, err := docstore.NewService(cfg.Document)
		if err != nil {
			return nil, err
		}
		st, seed = svc, cfg.Document.SeedDemoUsers
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
	zap.L().Info("Store opened", zap.String("backend", cfg.Store.Backend))

	if seed {
		if err := SeedDemoUsers(ctx, st); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

// InitializeServices wires the store, pricing, chat, and the optional integrations
// (Redis quote cache, Formance mirror, Prime custody). Optional integrations that fail
// to start are logged and left out. The feed is built but not started.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	assets, err := LoadAssetCatalog(cfg.Store.AssetsFile)
	if err != nil {
		return nil, err
	}

	st, err := InitializeStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Config:  cfg,
		Store:   st,
		Assets:  assets,
		Metrics: metrics.Registry(cfg.Metrics.Namespace),
	}
	s.Hub = chat.NewHub(hubBuffer, s.Metrics)

	httpClient, err := httpclient.New(cfg.Pricing.HttpTimeout)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("unable to create pricing http client: %w", err)
	}

	feedCfg := pricing.FeedConfig{
		Crypto:         pricing.NewCoinGecko(cfg.Pricing.CoinGeckoURL, httpClient, assets.CoinIds()),
		Forex:          pricing.NewForexGenerator(uint64(time.Now().UnixNano())),
		Metrics:        s.Metrics,
		CryptoInterval: cfg.Pricing.RefreshInterval,
		ForexInterval:  cfg.Pricing.ForexInterval,
	}
	if s.Cache = openQuoteCache(ctx, cfg.Redis); s.Cache != nil {
		feedCfg.Cache = s.Cache
	}
	s.Feed = pricing.NewFeed(feedCfg)

	deps := api.Deps{
		Store:   st,
		Prices:  s.Feed,
		Assets:  assets,
		Hub:     s.Hub,
		Metrics: s.Metrics,
	}

	if cfg.Auth.JwtSecret != "" {
		tokens, err := auth.NewTokenIssuer(cfg.Auth.JwtSecret, cfg.Auth.SessionTTL)
		if err != nil {
			s.Close()
			return nil, err
		}
		deps.Tokens = tokens
	}

	if cfg.Formance.Enabled() {
		ledger, err := formance.NewService(ctx, cfg.Formance, s.Metrics)
		if err != nil {
			zap.L().Warn("Formance ledger mirror disabled", zap.Error(err))
		} else {
			s.Ledger = ledger
			deps.Mirror = ledger
			zap.L().Info("Mirroring transitions to Formance", zap.String("ledger", cfg.Formance.LedgerName))
		}
	}

	if cfg.Prime.Enabled() {
		custody, err := prime.NewService(cfg.Prime)
		if err != nil {
			zap.L().Warn("Prime deposit addresses disabled", zap.Error(err))
		} else {
			s.Custody = custody
			deps.Addresses = custody
			zap.L().Info("Resolving deposit addresses from Prime", zap.String("portfolio_id", cfg.Prime.PortfolioId))
		}
	}

	s.Broker = api.NewBrokerService(deps)
	return s, nil
}

func openQuoteCache(ctx context.Context, cfg models.RedisConfig) *cache.QuoteCache {
	if cfg.Addr == "" {
		return nil
	}
	qc := cache.New(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := qc.Ping(pingCtx); err != nil {
		zap.L().Warn("Redis quote cache unavailable", zap.String("addr", cfg.Addr), zap.Error(err))
		qc.Close()
		return nil
	}
	zap.L().Info("Sharing quotes through Redis", zap.String("addr", cfg.Addr))
	return qc
}

func (s *Services) Close() {
	if s.Feed != nil {
		s.Feed.Stop()
	}
	if s.Hub != nil {
		s.Hub.Close()
	}
	if s.Ledger != nil {
		s.Ledger.Close()
	}
	if s.Cache != nil {
		s.Cache.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
