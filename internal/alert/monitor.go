// Package alert evaluates price-alert rules against the latest persisted
// bars and publishes trigger events to the internal bus.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invest-analyzer/internal/infrastructure"
	"invest-analyzer/internal/model"
)

// Store is the storage slice the monitor reads and writes.
type Store interface {
	ListActiveAlerts(ctx context.Context, userID int64) ([]model.PriceAlert, error)
	MarkAlertTriggered(ctx context.Context, alertID int64, at time.Time, price decimal.Decimal) error
	LoadRecentBars(ctx context.Context, market model.Market, code string, n int) ([]model.Bar, error)
}

// Publisher is the JetStream publish surface.
type Publisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Event 触发事件，发布到 alerts.triggered.<market>.<code>
type Event struct {
	AlertID     int64           `json:"alert_id"`
	UserID      int64           `json:"user_id"`
	Market      model.Market    `json:"market"`
	Code        string          `json:"code"`
	AlertType   model.AlertType `json:"alert_type"`
	Price       decimal.Decimal `json:"price"`
	Reason      string          `json:"reason"`
	TriggeredAt time.Time       `json:"triggered_at"`
}

// Summary 一轮检查的汇总
type Summary struct {
	Checked   int      `json:"checked"`
	Triggered int      `json:"triggered"`
	Errors    []string `json:"errors,omitempty"`
}

// Monitor 提醒监控器
type Monitor struct {
	store  Store
	js     Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewMonitor(store Store, js Publisher, logger *zap.Logger) *Monitor {
	return &Monitor{store: store, js: js, logger: logger, now: time.Now}
}

// Evaluate decides whether the alert fires at the given price.
func Evaluate(a model.PriceAlert, price decimal.Decimal) (bool, string) {
	switch a.AlertType {
	case model.AlertAbove:
		if a.TargetPrice.IsPositive() && price.GreaterThanOrEqual(a.TargetPrice) {
			return true, fmt.Sprintf("price %s above target %s", price, a.TargetPrice)
		}
	case model.AlertBelow:
		if a.TargetPrice.IsPositive() && price.LessThanOrEqual(a.TargetPrice) {
			return true, fmt.Sprintf("price %s below target %s", price, a.TargetPrice)
		}
	case model.AlertChangeUp:
		if a.BasePrice.IsPositive() && a.TargetChangePct.IsPositive() {
			change := price.Sub(a.BasePrice).Div(a.BasePrice)
			if change.GreaterThanOrEqual(a.TargetChangePct) {
				return true, fmt.Sprintf("up %s from base %s", change.StringFixed(4), a.BasePrice)
			}
		}
	case model.AlertChangeDown:
		if a.BasePrice.IsPositive() && a.TargetChangePct.IsPositive() {
			change := a.BasePrice.Sub(price).Div(a.BasePrice)
			if change.GreaterThanOrEqual(a.TargetChangePct) {
				return true, fmt.Sprintf("down %s from base %s", change.StringFixed(4), a.BasePrice)
			}
		}
	}
	return false, ""
}

// CheckAll evaluates every active alert (userID = 0 means all users)
// against the latest persisted close and publishes trigger events.
func (m *Monitor) CheckAll(ctx context.Context, userID int64) Summary {
	var sum Summary

	alerts, err := m.store.ListActiveAlerts(ctx, userID)
	if err != nil {
		sum.Errors = append(sum.Errors, err.Error())
		return sum
	}

	for _, a := range alerts {
		sum.Checked++

		bars, err := m.store.LoadRecentBars(ctx, a.Market, a.Code, 1)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", a.FullCode(), err))
			continue
		}
		if len(bars) == 0 {
			continue
		}
		price := bars[len(bars)-1].Close

		fired, reason := Evaluate(a, price)
		if !fired {
			continue
		}

		at := m.now()
		if err := m.store.MarkAlertTriggered(ctx, a.ID, at, price); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", a.FullCode(), err))
			continue
		}
		sum.Triggered++
		infrastructure.AlertTriggers.WithLabelValues(string(a.AlertType)).Inc()

		m.publish(Event{
			AlertID:     a.ID,
			UserID:      a.UserID,
			Market:      a.Market,
			Code:        a.Code,
			AlertType:   a.AlertType,
			Price:       price,
			Reason:      reason,
			TriggeredAt: at,
		})
	}
	return sum
}

func (m *Monitor) publish(ev Event) {
	if m.js == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		m.logger.Error("failed to marshal alert event", zap.Error(err))
		return
	}
	subject := fmt.Sprintf("alerts.triggered.%s.%s", ev.Market, ev.Code)
	if _, err := m.js.Publish(subject, data); err != nil {
		m.logger.Error("failed to publish alert event",
			zap.String("subject", subject), zap.Error(err))
	}
}
