package provider

import (
	"context"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invest-analyzer/internal/errs"
	"invest-analyzer/internal/model"
)

// AlpacaQuoteProvider serves US-market daily bars via the alpaca market
// data API. Other markets are rejected as InvalidInput.
type AlpacaQuoteProvider struct {
	client *marketdata.Client
	logger *zap.Logger
}

func NewAlpacaQuoteProvider(apiKey, apiSecret string, logger *zap.Logger) *AlpacaQuoteProvider {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return &AlpacaQuoteProvider{client: client, logger: logger}
}

func (p *AlpacaQuoteProvider) FetchBars(ctx context.Context, market model.Market, code string, from, to time.Time) ([]model.Bar, error) {
	if market != model.MarketUS {
		return nil, errs.Invalid(string(market)+"."+code, "alpaca serves US symbols only")
	}
	if to.Before(from) {
		return nil, errs.Invalid(string(market)+"."+code, "reversed date range")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Transient(string(market)+"."+code, err)
	}

	raw, err := p.client.GetBars(code, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      from,
		End:        to,
		Adjustment: marketdata.Split,
	})
	if err != nil {
		return nil, classifyAlpacaError(string(market)+"."+code, err)
	}

	bars := make([]model.Bar, 0, len(raw))
	for _, b := range raw {
		bar := model.Bar{
			Market:    model.MarketUS,
			Code:      code,
			TradeDate: b.Timestamp.UTC().Truncate(24 * time.Hour),
			Open:      decimal.NewFromFloat(b.Open),
			High:      decimal.NewFromFloat(b.High),
			Low:       decimal.NewFromFloat(b.Low),
			Close:     decimal.NewFromFloat(b.Close),
			Volume:    int64(b.Volume),
		}
		if err := bar.Validate(); err != nil {
			return nil, errs.ProviderInvalid(bar.FullCode(), err)
		}
		bars = append(bars, bar)
	}
	p.logger.Debug("fetched alpaca bars",
		zap.String("code", code), zap.Int("count", len(bars)))
	return bars, nil
}

func classifyAlpacaError(symbol string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found") || strings.Contains(msg, "404"):
		return errs.NotFound(symbol, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return errs.Transient(symbol, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection"):
		return errs.Transient(symbol, err)
	default:
		return errs.ProviderInvalid(symbol, err)
	}
}
