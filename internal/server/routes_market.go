package server

import (
	"context"
	"net/http"
	"sort"

	"brokerdesk-go/internal/models"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"
)

func registerMarketHandlers(api huma.API, market MarketData) {
	huma.Register(api, huma.Operation{OperationID: "crypto-prices", Method: http.MethodGet, Path: apiPrefix + "/prices/crypto", Summary: "Latest crypto quotes in USD", Tags: []string{"Prices"}},
		func(ctx context.Context, input *struct{}) (*listOutput[models.CryptoQuote], error) {
			snap := market.Snapshot()
			quotes := make([]models.CryptoQuote, 0, len(snap.Crypto))
			for _, q := range snap.Crypto {
				quotes = append(quotes, q)
			}
			sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })
			return list(quotes, nil)
		})

	huma.Register(api, huma.Operation{OperationID: "forex-rates", Method: http.MethodGet, Path: apiPrefix + "/prices/forex", Summary: "Latest forex rates", Tags: []string{"Prices"}},
		func(ctx context.Context, input *struct{}) (*listOutput[models.ForexQuote], error) {
			snap := market.Snapshot()
			quotes := make([]models.ForexQuote, 0, len(snap.Forex))
			for _, q := range snap.Forex {
				quotes = append(quotes, q)
			}
			sort.Slice(quotes, func(i, j int) bool { return quotes[i].Pair < quotes[j].Pair })
			return list(quotes, nil)
		})

	huma.Register(api, huma.Operation{OperationID: "market-chart", Method: http.MethodGet, Path: apiPrefix + "/prices/chart/{coin}", Summary: "Historical USD prices for a coin", Tags: []string{"Prices"}},
		func(ctx context.Context, input *struct {
			Coin string `path:"coin" doc:"CoinGecko coin id, e.g. bitcoin"`
			Days int    `query:"days" default:"7" minimum:"1" maximum:"365"`
		}) (*listOutput[models.ChartPoint], error) {
			points, err := market.Chart(ctx, input.Coin, input.Days)
			if err != nil {
				zap.L().Warn("Market chart unavailable", zap.String("coin", input.Coin), zap.Error(err))
				return nil, huma.Error502BadGateway("Market chart is unavailable")
			}
			return list(points, nil)
		})
}
