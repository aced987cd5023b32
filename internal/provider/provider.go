// Package provider defines the narrow interfaces the sync pipeline pulls
// external data through, plus concrete adapters.
package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"invest-analyzer/internal/model"
)

// QuoteProvider fetches daily bars for one symbol over a day range,
// ascending by date. Implementations map their failures onto the errs
// taxonomy (NotFound, Transient, ProviderInvalid).
type QuoteProvider interface {
	FetchBars(ctx context.Context, market model.Market, code string, from, to time.Time) ([]model.Bar, error)
}

// AccountInfo 券商账户资金信息
type AccountInfo struct {
	BrokerAccID int64
	TotalAssets decimal.Decimal
	Cash        decimal.Decimal
	MarketValue decimal.Decimal
	FrozenCash  decimal.Decimal
	BuyingPower decimal.Decimal
	Currency    string
}

// PositionInfo 券商持仓信息
type PositionInfo struct {
	Market      model.Market
	Code        string
	StockName   string
	Qty         decimal.Decimal
	CanSellQty  decimal.Decimal
	CostPrice   decimal.Decimal
	MarketPrice decimal.Decimal
	MarketValue decimal.Decimal
	PLValue     decimal.Decimal
	PLRatio     decimal.Decimal
	Side        model.PositionSide
}

// DealInfo 券商成交信息
type DealInfo struct {
	DealID    string
	OrderID   string
	TradeTime time.Time
	Market    model.Market
	Code      string
	StockName string
	Side      model.TradeSide
	Qty       decimal.Decimal
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Fee       decimal.Decimal
	Currency  string
}

// WatchItem 券商侧关注列表条目
type WatchItem struct {
	Market    model.Market
	Code      string
	StockName string
	GroupName string
}

// BrokerAccount 券商账户标识
type BrokerAccount struct {
	BrokerAccID int64
	AccountName string
	AccountType model.AccountType
	Market      model.Market
	Currency    string
}

// BrokerSession is an already-connected broker handle. Authentication is
// handled outside the core; Close releases the connection.
type BrokerSession interface {
	ListAccounts(ctx context.Context) ([]BrokerAccount, error)
	FetchPositions(ctx context.Context, brokerAccID int64) ([]PositionInfo, error)
	FetchAccountInfo(ctx context.Context, brokerAccID int64) (AccountInfo, error)
	FetchTodayDeals(ctx context.Context, brokerAccID int64) ([]DealInfo, error)
	FetchHistoricalDeals(ctx context.Context, brokerAccID int64, from, to time.Time) ([]DealInfo, error)
	FetchWatchlist(ctx context.Context) ([]WatchItem, error)
	Close() error
}

// BrokerConnector opens broker sessions.
type BrokerConnector interface {
	Connect(ctx context.Context) (BrokerSession, error)
}

// WithSession runs fn against a fresh session and guarantees release on
// every exit path.
func WithSession(ctx context.Context, c BrokerConnector, fn func(BrokerSession) error) error {
	sess, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}
