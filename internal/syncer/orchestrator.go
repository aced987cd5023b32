// Package syncer coordinates ingest from the quote and broker providers
// into the stores, with idempotent upserts and append-only sync logs.
package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"invest-analyzer/internal/errs"
	"invest-analyzer/internal/infrastructure"
	"invest-analyzer/internal/model"
	"invest-analyzer/internal/provider"
	"invest-analyzer/internal/symbol"
)

// Store is the slice of the storage API the orchestrator writes through.
type Store interface {
	UpsertBars(ctx context.Context, bars []model.Bar) (int, error)
	LatestBarDate(ctx context.Context, market model.Market, code string) (time.Time, bool, error)
	ListActiveAccounts(ctx context.Context, userID int64) ([]model.Account, error)
	UpsertPositions(ctx context.Context, accountID int64, snapshotDate time.Time, positions []provider.PositionInfo) (int, error)
	UpsertAccountSnapshot(ctx context.Context, accountID int64, snapshotDate time.Time, info provider.AccountInfo) (bool, error)
	InsertFills(ctx context.Context, accountID int64, deals []provider.DealInfo) (int, error)
	ReconcileWatchlist(ctx context.Context, userID int64, items []provider.WatchItem) (int, error)
	ListActiveWatchlist(ctx context.Context, userID int64) ([]model.WatchlistItem, error)
	GetPositions(ctx context.Context, accountIDs []int64, snapshotDate time.Time) ([]model.Position, error)
	AppendSyncLog(ctx context.Context, log model.SyncLog) error
}

// Enricher recomputes derived bar columns after a symbol's upsert.
type Enricher interface {
	Enrich(ctx context.Context, market model.Market, code string) error
}

// Config 同步参数
type Config struct {
	Workers         int
	BarFetchTimeout time.Duration
	BrokerTimeout   time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	KlineDays       int
	TradeDays       int
}

func DefaultConfig() Config {
	return Config{
		Workers:         4,
		BarFetchTimeout: 10 * time.Second,
		BrokerTimeout:   15 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    500 * time.Millisecond,
		KlineDays:       120,
		TradeDays:       90,
	}
}

// Result 单次同步操作的结果
type Result struct {
	RunID    string           `json:"run_id"`
	Type     model.SyncType   `json:"sync_type"`
	Status   model.SyncStatus `json:"status"`
	Records  int              `json:"records"`
	Errors   []string         `json:"errors,omitempty"`
	Started  time.Time        `json:"started_at"`
	Finished time.Time        `json:"finished_at"`
}

// Orchestrator 同步编排器
type Orchestrator struct {
	store    Store
	quotes   map[model.Market]provider.QuoteProvider
	broker   provider.BrokerConnector
	enricher Enricher
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
}

func NewOrchestrator(store Store, quotes map[model.Market]provider.QuoteProvider,
	broker provider.BrokerConnector, enricher Enricher, logger *zap.Logger, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	return &Orchestrator{
		store:    store,
		quotes:   quotes,
		broker:   broker,
		enricher: enricher,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (o *Orchestrator) today() time.Time {
	y, m, d := o.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SyncPositions snapshots current positions and account balances for all
// of the user's active accounts.
func (o *Orchestrator) SyncPositions(ctx context.Context, userID int64) (res Result) {
	res = o.begin(model.SyncPositions)
	defer o.finish(ctx, userID, &res)

	accounts, err := o.store.ListActiveAccounts(ctx, userID)
	if err != nil {
		res.fail(err)
		return res
	}
	if len(accounts) == 0 {
		res.fail(fmt.Errorf("no active accounts for user %d", userID))
		return res
	}

	snapshotDate := o.today()
	err = provider.WithSession(ctx, o.broker, func(sess provider.BrokerSession) error {
		for _, account := range accounts {
			acc := account
			var positions []provider.PositionInfo
			err := o.withRetry(ctx, acc.AccountName, o.cfg.BrokerTimeout, func(c context.Context) error {
				var e error
				positions, e = sess.FetchPositions(c, acc.BrokerAccID)
				return e
			})
			if err != nil {
				res.addError(fmt.Sprintf("account %d positions: %v", acc.BrokerAccID, err))
				continue
			}
			inserted, err := o.store.UpsertPositions(ctx, acc.ID, snapshotDate, positions)
			if err != nil {
				res.addError(fmt.Sprintf("account %d upsert: %v", acc.BrokerAccID, err))
				continue
			}
			res.Records += inserted

			var info provider.AccountInfo
			err = o.withRetry(ctx, acc.AccountName, o.cfg.BrokerTimeout, func(c context.Context) error {
				var e error
				info, e = sess.FetchAccountInfo(c, acc.BrokerAccID)
				return e
			})
			if err != nil {
				res.addError(fmt.Sprintf("account %d snapshot: %v", acc.BrokerAccID, err))
				continue
			}
			if wasInserted, err := o.store.UpsertAccountSnapshot(ctx, acc.ID, snapshotDate, info); err != nil {
				res.addError(fmt.Sprintf("account %d snapshot upsert: %v", acc.BrokerAccID, err))
			} else if wasInserted {
				res.Records++
			}
		}
		return nil
	})
	if err != nil {
		res.fail(err)
	}
	return res
}

// SyncTrades pulls today's deals plus history over the range and appends
// them, deduplicated on (account, deal_id).
func (o *Orchestrator) SyncTrades(ctx context.Context, userID int64, from, to time.Time) (res Result) {
	res = o.begin(model.SyncTrades)
	defer o.finish(ctx, userID, &res)

	if to.IsZero() {
		to = o.today()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -o.cfg.TradeDays)
	}
	if to.Before(from) {
		res.fail(errs.Invalid("", "reversed date range %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02")))
		return res
	}

	accounts, err := o.store.ListActiveAccounts(ctx, userID)
	if err != nil {
		res.fail(err)
		return res
	}

	err = provider.WithSession(ctx, o.broker, func(sess provider.BrokerSession) error {
		for _, account := range accounts {
			acc := account
			var deals []provider.DealInfo
			err := o.withRetry(ctx, acc.AccountName, o.cfg.BrokerTimeout, func(c context.Context) error {
				today, e := sess.FetchTodayDeals(c, acc.BrokerAccID)
				if e != nil {
					return e
				}
				history, e := sess.FetchHistoricalDeals(c, acc.BrokerAccID, from, to)
				if e != nil {
					return e
				}
				deals = dedupeDeals(append(history, today...))
				return nil
			})
			if err != nil {
				res.addError(fmt.Sprintf("account %d deals: %v", acc.BrokerAccID, err))
				continue
			}
			inserted, err := o.store.InsertFills(ctx, acc.ID, deals)
			if err != nil {
				res.addError(fmt.Sprintf("account %d insert: %v", acc.BrokerAccID, err))
				continue
			}
			res.Records += inserted
		}
		return nil
	})
	if err != nil {
		res.fail(err)
	}
	return res
}

// SyncWatchlist reconciles the user's watchlist with the broker's copy.
func (o *Orchestrator) SyncWatchlist(ctx context.Context, userID int64) (res Result) {
	res = o.begin(model.SyncWatchlist)
	defer o.finish(ctx, userID, &res)

	err := provider.WithSession(ctx, o.broker, func(sess provider.BrokerSession) error {
		var items []provider.WatchItem
		err := o.withRetry(ctx, "watchlist", o.cfg.BrokerTimeout, func(c context.Context) error {
			var e error
			items, e = sess.FetchWatchlist(c)
			return e
		})
		if err != nil {
			return err
		}
		inserted, err := o.store.ReconcileWatchlist(ctx, userID, items)
		if err != nil {
			return err
		}
		res.Records = inserted
		return nil
	})
	if err != nil {
		res.fail(err)
	}
	return res
}

// SyncKlines fetches missing daily bars for the symbols with a bounded
// worker pool; one worker owns a symbol at a time, so each symbol's rows
// land in order.
func (o *Orchestrator) SyncKlines(ctx context.Context, userID int64, symbols []symbol.Symbol, days int) (res Result) {
	res = o.begin(model.SyncKlines)
	defer o.finish(ctx, userID, &res)

	if days <= 0 {
		days = o.cfg.KlineDays
	}
	symbols = dedupeSymbols(symbols)
	if len(symbols) == 0 {
		return res
	}

	type symbolResult struct {
		sym      symbol.Symbol
		inserted int
		err      error
	}

	jobs := make(chan symbol.Symbol)
	results := make(chan symbolResult, len(symbols))

	workers := o.cfg.Workers
	if workers > len(symbols) {
		workers = len(symbols)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				inserted, err := o.syncOneSymbol(ctx, sym, days)
				results <- symbolResult{sym: sym, inserted: inserted, err: err}
			}
		}()
	}

dispatch:
	for _, sym := range symbols {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- sym:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			res.addError(fmt.Sprintf("%s: %v", r.sym, r.err))
			infrastructure.SyncFailures.WithLabelValues(string(model.SyncKlines)).Inc()
			continue
		}
		res.Records += r.inserted
	}
	if ctx.Err() != nil {
		res.addError(fmt.Sprintf("cancelled: %v", ctx.Err()))
	}
	return res
}

// syncOneSymbol fetches from the day after the latest persisted bar up to
// today, and upserts inside the worker's own transaction.
func (o *Orchestrator) syncOneSymbol(ctx context.Context, sym symbol.Symbol, days int) (int, error) {
	qp, ok := o.quotes[sym.Market]
	if !ok {
		return 0, errs.Invalid(sym.String(), "no quote provider for market %s", sym.Market)
	}

	to := o.today()
	from := to.AddDate(0, 0, -days)
	if latest, ok, err := o.store.LatestBarDate(ctx, sym.Market, sym.Code); err != nil {
		return 0, err
	} else if ok {
		next := latest.AddDate(0, 0, 1)
		if next.After(from) {
			from = next
		}
	}
	if from.After(to) {
		return 0, nil
	}

	var bars []model.Bar
	start := o.now()
	err := o.withRetry(ctx, sym.String(), o.cfg.BarFetchTimeout, func(c context.Context) error {
		var e error
		bars, e = qp.FetchBars(c, sym.Market, sym.Code, from, to)
		return e
	})
	infrastructure.ProviderLatency.WithLabelValues("quote", "fetch_bars").
		Observe(o.now().Sub(start).Seconds())
	if err != nil {
		return 0, err
	}

	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return 0, errs.Assert("invalid bar from provider: %v", err)
		}
	}

	inserted, err := o.store.UpsertBars(ctx, bars)
	if err != nil {
		if errs.KindOf(err) == errs.KindIntegrityConflict {
			// A concurrent writer got there first; one re-upsert settles it.
			inserted, err = o.store.UpsertBars(ctx, bars)
		}
		if err != nil {
			return 0, err
		}
	}

	if o.enricher != nil && inserted > 0 {
		if err := o.enricher.Enrich(ctx, sym.Market, sym.Code); err != nil {
			o.logger.Warn("bar enrichment failed",
				zap.String("symbol", sym.String()), zap.Error(err))
		}
	}
	return inserted, nil
}

// SyncAll runs positions, trades, watchlist, then klines over the union
// of position and watchlist symbols. Any subcomponent failure makes the
// aggregate PARTIAL; records is the sum of successes.
func (o *Orchestrator) SyncAll(ctx context.Context, userID int64) map[model.SyncType]Result {
	out := map[model.SyncType]Result{}

	out[model.SyncPositions] = o.SyncPositions(ctx, userID)
	out[model.SyncTrades] = o.SyncTrades(ctx, userID, time.Time{}, time.Time{})
	out[model.SyncWatchlist] = o.SyncWatchlist(ctx, userID)

	symbols := o.collectUserSymbols(ctx, userID)
	out[model.SyncKlines] = o.SyncKlines(ctx, userID, symbols, o.cfg.KlineDays)

	agg := o.begin(model.SyncAll)
	for _, r := range out {
		agg.Records += r.Records
		agg.Errors = append(agg.Errors, r.Errors...)
	}
	o.finish(ctx, userID, &agg)
	out[model.SyncAll] = agg
	return out
}

// collectUserSymbols unions today's position symbols with the active
// watchlist.
func (o *Orchestrator) collectUserSymbols(ctx context.Context, userID int64) []symbol.Symbol {
	var syms []symbol.Symbol

	if accounts, err := o.store.ListActiveAccounts(ctx, userID); err == nil {
		ids := make([]int64, 0, len(accounts))
		for _, a := range accounts {
			ids = append(ids, a.ID)
		}
		if positions, err := o.store.GetPositions(ctx, ids, o.today()); err == nil {
			for _, p := range positions {
				syms = append(syms, symbol.Symbol{Market: p.Market, Code: p.Code})
			}
		}
	}
	if items, err := o.store.ListActiveWatchlist(ctx, userID); err == nil {
		for _, w := range items {
			syms = append(syms, symbol.Symbol{Market: w.Market, Code: w.Code})
		}
	}
	return dedupeSymbols(syms)
}

func (o *Orchestrator) begin(t model.SyncType) Result {
	return Result{
		RunID:   uuid.NewString(),
		Type:    t,
		Status:  model.SyncSuccess,
		Started: o.now(),
	}
}

// finish closes the result and appends the sync log row.
func (o *Orchestrator) finish(ctx context.Context, userID int64, res *Result) {
	res.Finished = o.now()
	if len(res.Errors) > 0 && res.Status != model.SyncFailed {
		res.Status = model.SyncPartial
	}
	infrastructure.SyncRecords.WithLabelValues(string(res.Type)).Add(float64(res.Records))

	finished := res.Finished
	log := model.SyncLog{
		RunID:        res.RunID,
		UserID:       &userID,
		SyncType:     res.Type,
		Status:       res.Status,
		RecordsCount: res.Records,
		ErrorMessage: strings.Join(res.Errors, "; "),
		StartedAt:    res.Started,
		FinishedAt:   &finished,
	}
	if err := o.store.AppendSyncLog(ctx, log); err != nil {
		o.logger.Error("failed to append sync log",
			zap.String("run_id", res.RunID), zap.Error(err))
	}
	o.logger.Info("sync finished",
		zap.String("run_id", res.RunID),
		zap.String("type", string(res.Type)),
		zap.String("status", string(res.Status)),
		zap.Int("records", res.Records),
		zap.Int("errors", len(res.Errors)))
}

func (r *Result) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *Result) fail(err error) {
	r.Status = model.SyncFailed
	r.Errors = append(r.Errors, err.Error())
}

// withRetry applies the per-call deadline and retries transient errors
// with doubling backoff.
func (o *Orchestrator) withRetry(ctx context.Context, label string, timeout time.Duration, fn func(context.Context) error) error {
	backoff := o.cfg.RetryBackoff
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err := fn(callCtx)
		cancel()
		if err == nil || !errs.IsRetryable(err) || attempt >= o.cfg.MaxRetries {
			return err
		}
		o.logger.Warn("transient provider error, retrying",
			zap.String("target", label), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return errs.Transient(label, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func dedupeDeals(deals []provider.DealInfo) []provider.DealInfo {
	seen := map[string]bool{}
	out := deals[:0]
	for _, d := range deals {
		if seen[d.DealID] {
			continue
		}
		seen[d.DealID] = true
		out = append(out, d)
	}
	return out
}

func dedupeSymbols(syms []symbol.Symbol) []symbol.Symbol {
	seen := map[string]bool{}
	var out []symbol.Symbol
	for _, s := range syms {
		key := s.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
