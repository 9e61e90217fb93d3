// Package server exposes the broker workflows over REST, plus the chat push socket.
package server

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	broker "brokerdesk-go/internal/api"
	"brokerdesk-go/internal/metrics"
	"brokerdesk-go/internal/models"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

// MarketData serves quotes and charts to the price endpoints.
type MarketData interface {
	Snapshot() models.PriceSnapshot
	Chart(ctx context.Context, coinId string, days int) ([]models.ChartPoint, error)
}

type Options struct {
	Service *broker.BrokerService
	Market  MarketData
	Metrics *metrics.Metrics
}

var bearerAuth = []map[string][]string{{"bearer": {}}}

type principalKey struct{}

func principalFrom(ctx context.Context) models.Principal {
	p, _ := ctx.Value(principalKey{}).(models.Principal)
	return p
}

func NewServer(opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	if opts.Metrics != nil {
		router.Use(instrument(opts.Metrics))
	}
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Brokerdesk API", "1.0.0")
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}
	// Amounts travel as decimal strings.
	cfg.Components.Schemas.RegisterTypeAlias(reflect.TypeOf(decimal.Decimal{}), reflect.TypeOf(""))
	api := humachi.New(router, cfg)
	api.UseMiddleware(authenticate(api, opts.Service))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := opts.Service.HealthCheck(r.Context()); err != nil {
			zap.L().Warn("Health check failed", zap.Error(err))
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Handle("/ws/chat", newChatSocket(opts.Service))

	registerSessionHandlers(api, opts.Service)
	registerDepositHandlers(api, opts.Service)
	registerWithdrawalHandlers(api, opts.Service)
	registerTradeHandlers(api, opts.Service)
	registerKycHandlers(api, opts.Service)
	registerAccountHandlers(api, opts.Service)
	registerChatHandlers(api, opts.Service)
	if opts.Market != nil {
		registerMarketHandlers(api, opts.Market)
	}

	return router
}

// authenticate resolves the bearer token for operations that declare bearer security.
func authenticate(api huma.API, svc *broker.BrokerService) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op == nil || len(op.Security) == 0 {
			next(ctx)
			return
		}
		p, err := svc.Authenticate(ctx.Context(), bearerToken(ctx.Header("Authorization")))
		if err != nil {
			status := http.StatusUnauthorized
			if broker.CodeOf(err) == broker.CodeInternal {
				zap.L().Error("Authentication failed", zap.Error(err))
				status = http.StatusInternalServerError
			}
			_ = huma.WriteErr(api, ctx, status, "Not authenticated")
			return
		}
		next(huma.WithValue(ctx, principalKey{}, p))
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// mapErr converts service errors into HTTP problems carrying the user-facing message.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *broker.Error
	if !errors.As(err, &apiErr) {
		zap.L().Error("Unclassified request error", zap.Error(err))
		return huma.Error500InternalServerError("Internal server error")
	}
	switch apiErr.Code {
	case broker.CodeValidation:
		return huma.Error400BadRequest(apiErr.Message)
	case broker.CodeUnauthenticated:
		return huma.Error401Unauthorized(apiErr.Message)
	case broker.CodeForbidden:
		return huma.Error403Forbidden(apiErr.Message)
	case broker.CodeNotFound:
		return huma.Error404NotFound(apiErr.Message)
	case broker.CodeConflict:
		return huma.Error409Conflict(apiErr.Message)
	case broker.CodeInsufficientBalance:
		return huma.Error422UnprocessableEntity(apiErr.Message)
	default:
		return huma.Error500InternalServerError(apiErr.Message)
	}
}

type resultOutput[T any] struct {
	Body *broker.Result[T]
}

func respond[T any](res *broker.Result[T], err error) (*resultOutput[T], error) {
	if err != nil {
		return nil, mapErr(err)
	}
	return &resultOutput[T]{Body: res}, nil
}

type listOutput[T any] struct {
	Body []T
}

func list[T any](items []T, err error) (*listOutput[T], error) {
	if err != nil {
		return nil, mapErr(err)
	}
	if items == nil {
		items = []T{}
	}
	return &listOutput[T]{Body: items}, nil
}

type bodyOutput[T any] struct {
	Body T
}
