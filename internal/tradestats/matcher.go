// Package tradestats pairs raw fills into round-trip trades and derives
// performance statistics over them.
package tradestats

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"invest-analyzer/internal/model"
)

// RoundTrip 一次完整的开平仓配对
type RoundTrip struct {
	AccountID  int64           `json:"account_id"`
	Market     model.Market    `json:"market"`
	Code       string          `json:"code"`
	StockName  string          `json:"stock_name,omitempty"`
	Instrument Instrument      `json:"instrument"`
	Multiplier int64           `json:"multiplier"`
	Qty        decimal.Decimal `json:"qty"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	GrossPnL   decimal.Decimal `json:"gross_pnl"`
	Fees       decimal.Decimal `json:"fees"`
	NetPnL     decimal.Decimal `json:"net_pnl"`
	PnLRatio   decimal.Decimal `json:"pnl_ratio"`
	HoldDays   int             `json:"hold_days"`

	EntryDealIDs []string `json:"entry_deal_ids,omitempty"`
	ExitDealIDs  []string `json:"exit_deal_ids,omitempty"`
}

func (r RoundTrip) FullCode() string {
	return fmt.Sprintf("%s.%s", r.Market, r.Code)
}

func (r RoundTrip) IsProfitable() bool {
	return r.NetPnL.IsPositive()
}

// openLot 尚未配对的买入（LIFO 栈元素）
type openLot struct {
	dealID       string
	tradeTime    time.Time
	price        decimal.Decimal
	qty          decimal.Decimal
	remainingQty decimal.Decimal
	fee          decimal.Decimal
}

// Residual 无法配对的剩余数量
type Residual struct {
	DealID string          `json:"deal_id"`
	Side   model.TradeSide `json:"side"`
	Qty    decimal.Decimal `json:"qty"`
	Market model.Market    `json:"market"`
	Code   string          `json:"code"`
}

// Matcher pairs fills into round trips using LIFO: the most recent open
// lot closes first. Queues are keyed per (account, market, code,
// instrument), so stock and option fills on the same underlying never mix.
type Matcher struct {
	multipliers MultiplierTable
	lots        map[string][]*openLot
	matched     []RoundTrip
	residuals   []Residual
}

func NewMatcher(multipliers MultiplierTable) *Matcher {
	return &Matcher{
		multipliers: multipliers,
		lots:        map[string][]*openLot{},
	}
}

// Match pairs the given fills. Fills are sorted by trade time before
// processing; input order does not matter.
func (m *Matcher) Match(fills []model.Fill) []RoundTrip {
	m.matched = nil
	m.residuals = nil
	m.lots = map[string][]*openLot{}

	sorted := make([]model.Fill, len(fills))
	copy(sorted, fills)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TradeTime.Before(sorted[j].TradeTime)
	})

	for _, f := range sorted {
		key := m.queueKey(f)
		switch f.Side {
		case model.TradeBuy:
			m.processBuy(f, key)
		case model.TradeSell:
			m.processSell(f, key)
		}
	}
	return m.matched
}

func (m *Matcher) queueKey(f model.Fill) string {
	inst := ClassifyInstrument(f.Market, f.Code)
	return fmt.Sprintf("%d|%s|%s|%s", f.AccountID, f.Market, f.Code, inst)
}

func (m *Matcher) processBuy(f model.Fill, key string) {
	m.lots[key] = append(m.lots[key], &openLot{
		dealID:       f.DealID,
		tradeTime:    f.TradeTime,
		price:        f.Price,
		qty:          f.Qty,
		remainingQty: f.Qty,
		fee:          f.Fee,
	})
}

func (m *Matcher) processSell(f model.Fill, key string) {
	stack := m.lots[key]
	remaining := f.Qty

	for remaining.IsPositive() && len(stack) > 0 {
		lot := stack[len(stack)-1]
		matchQty := decimal.Min(lot.remainingQty, remaining)
		if matchQty.IsPositive() {
			sellFeeShare := decimal.Zero
			if f.Qty.IsPositive() {
				sellFeeShare = f.Fee.Mul(matchQty).Div(f.Qty)
			}
			m.matched = append(m.matched, m.buildRoundTrip(f, lot, matchQty, sellFeeShare))

			lot.remainingQty = lot.remainingQty.Sub(matchQty)
			remaining = remaining.Sub(matchQty)
		}
		if !lot.remainingQty.IsPositive() {
			stack = stack[:len(stack)-1]
		}
	}
	m.lots[key] = stack

	// Whatever the stack could not absorb is short-style exposure.
	if remaining.IsPositive() {
		m.residuals = append(m.residuals, Residual{
			DealID: f.DealID,
			Side:   model.TradeSell,
			Qty:    remaining,
			Market: f.Market,
			Code:   f.Code,
		})
	}
}

func (m *Matcher) buildRoundTrip(sell model.Fill, lot *openLot, qty, sellFee decimal.Decimal) RoundTrip {
	inst := ClassifyInstrument(sell.Market, sell.Code)
	mult := m.multipliers.Multiplier(sell.Market, sell.Code, inst)
	multDec := decimal.NewFromInt(mult)

	buyFee := decimal.Zero
	if lot.qty.IsPositive() {
		buyFee = lot.fee.Mul(qty).Div(lot.qty)
	}

	gross := sell.Price.Sub(lot.price).Mul(qty).Mul(multDec)
	fees := buyFee.Add(sellFee)
	net := gross.Sub(fees)

	ratio := decimal.Zero
	if cost := lot.price.Mul(qty).Mul(multDec); cost.IsPositive() {
		ratio = net.Div(cost)
	}

	holdDays := int(sell.TradeTime.Sub(lot.tradeTime).Hours() / 24)
	if holdDays < 0 {
		holdDays = 0
	}

	return RoundTrip{
		AccountID:    sell.AccountID,
		Market:       sell.Market,
		Code:         sell.Code,
		StockName:    sell.StockName,
		Instrument:   inst,
		Multiplier:   mult,
		Qty:          qty,
		EntryTime:    lot.tradeTime,
		ExitTime:     sell.TradeTime,
		EntryPrice:   lot.price,
		ExitPrice:    sell.Price,
		GrossPnL:     gross,
		Fees:         fees,
		NetPnL:       net,
		PnLRatio:     ratio,
		HoldDays:     holdDays,
		EntryDealIDs: []string{lot.dealID},
		ExitDealIDs:  []string{sell.DealID},
	}
}

// OpenLots returns the unpaired buy remainders (the live position).
func (m *Matcher) OpenLots() []Residual {
	var out []Residual
	for key, stack := range m.lots {
		for _, lot := range stack {
			if lot.remainingQty.IsPositive() {
				out = append(out, Residual{
					DealID: lot.dealID,
					Side:   model.TradeBuy,
					Qty:    lot.remainingQty,
					Market: keyMarket(key),
					Code:   keyCode(key),
				})
			}
		}
	}
	return out
}

// Residuals returns the sell quantities that found no open lot.
func (m *Matcher) Residuals() []Residual {
	return m.residuals
}

func keyMarket(key string) model.Market {
	parts := splitKey(key)
	if len(parts) >= 2 {
		return model.Market(parts[1])
	}
	return ""
}

func keyCode(key string) string {
	parts := splitKey(key)
	if len(parts) >= 3 {
		return parts[2]
	}
	return ""
}

func splitKey(key string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			parts = append(parts, key[start:i])
			start = i + 1
		}
	}
	return append(parts, key[start:])
}
