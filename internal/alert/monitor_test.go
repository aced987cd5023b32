package alert

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"invest-analyzer/internal/model"
)

type fakeAlertStore struct {
	alerts    []model.PriceAlert
	lastClose map[string]decimal.Decimal
	triggered []int64
}

func (f *fakeAlertStore) ListActiveAlerts(context.Context, int64) ([]model.PriceAlert, error) {
	var out []model.PriceAlert
	for _, a := range f.alerts {
		if a.IsActive && !a.IsTriggered {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) MarkAlertTriggered(_ context.Context, id int64, _ time.Time, _ decimal.Decimal) error {
	f.triggered = append(f.triggered, id)
	for i := range f.alerts {
		if f.alerts[i].ID == id {
			f.alerts[i].IsTriggered = true
		}
	}
	return nil
}

func (f *fakeAlertStore) LoadRecentBars(_ context.Context, market model.Market, code string, _ int) ([]model.Bar, error) {
	price, ok := f.lastClose[string(market)+"."+code]
	if !ok {
		return nil, nil
	}
	return []model.Bar{{Market: market, Code: code, Close: price}}, nil
}

type fakePublisher struct{ subjects []string }

func (f *fakePublisher) Publish(subj string, _ []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.subjects = append(f.subjects, subj)
	return &nats.PubAck{}, nil
}

func alertRule(id int64, kind model.AlertType, target, base, pct float64) model.PriceAlert {
	return model.PriceAlert{
		ID: id, UserID: 1, Market: model.MarketHK, Code: "00700",
		AlertType:       kind,
		TargetPrice:     decimal.NewFromFloat(target),
		BasePrice:       decimal.NewFromFloat(base),
		TargetChangePct: decimal.NewFromFloat(pct),
		IsActive:        true,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		alert model.PriceAlert
		price float64
		want  bool
	}{
		{"above hit", alertRule(1, model.AlertAbove, 400, 0, 0), 405, true},
		{"above miss", alertRule(1, model.AlertAbove, 400, 0, 0), 395, false},
		{"below hit", alertRule(1, model.AlertBelow, 350, 0, 0), 340, true},
		{"below miss", alertRule(1, model.AlertBelow, 350, 0, 0), 360, false},
		{"change up hit", alertRule(1, model.AlertChangeUp, 0, 100, 0.05), 106, true},
		{"change up miss", alertRule(1, model.AlertChangeUp, 0, 100, 0.05), 104, false},
		{"change down hit", alertRule(1, model.AlertChangeDown, 0, 100, 0.10), 89, true},
		{"change down miss", alertRule(1, model.AlertChangeDown, 0, 100, 0.10), 95, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fired, _ := Evaluate(tt.alert, decimal.NewFromFloat(tt.price))
			assert.Equal(t, tt.want, fired)
		})
	}
}

func TestCheckAll_TriggersAndPublishes(t *testing.T) {
	store := &fakeAlertStore{
		alerts: []model.PriceAlert{
			alertRule(1, model.AlertAbove, 400, 0, 0),
			alertRule(2, model.AlertBelow, 350, 0, 0),
		},
		lastClose: map[string]decimal.Decimal{
			"HK.00700": decimal.NewFromInt(405),
		},
	}
	pub := &fakePublisher{}
	m := NewMonitor(store, pub, zap.NewNop())

	sum := m.CheckAll(context.Background(), 0)
	assert.Equal(t, 2, sum.Checked)
	assert.Equal(t, 1, sum.Triggered)
	require.Len(t, store.triggered, 1)
	assert.Equal(t, int64(1), store.triggered[0])
	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "alerts.triggered.HK.00700", pub.subjects[0])

	// A second pass must not re-trigger the fired alert.
	sum = m.CheckAll(context.Background(), 0)
	assert.Equal(t, 0, sum.Triggered)
}

func TestCheckAll_NoBarsIsNotAnError(t *testing.T) {
	store := &fakeAlertStore{
		alerts:    []model.PriceAlert{alertRule(1, model.AlertAbove, 400, 0, 0)},
		lastClose: map[string]decimal.Decimal{},
	}
	m := NewMonitor(store, nil, zap.NewNop())
	sum := m.CheckAll(context.Background(), 0)
	assert.Equal(t, 1, sum.Checked)
	assert.Empty(t, sum.Errors)
	assert.Equal(t, 0, sum.Triggered)
}
