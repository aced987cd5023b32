package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"invest-analyzer/internal/alert"
	"invest-analyzer/internal/backtest"
	"invest-analyzer/internal/model"
	"invest-analyzer/internal/portfolio"
	"invest-analyzer/internal/scorer"
	"invest-analyzer/internal/series"
	"invest-analyzer/internal/storage"
	"invest-analyzer/internal/symbol"
	"invest-analyzer/internal/syncer"
	"invest-analyzer/internal/tradestats"
)

// Handler wires the analytics core behind a thin JSON surface.
type Handler struct {
	store       *storage.Store
	sync        *syncer.Orchestrator
	monitor     *alert.Monitor
	multipliers tradestats.MultiplierTable
	jwtSecret   string
	logger      *zap.Logger
}

func NewHandler(store *storage.Store, sync *syncer.Orchestrator, monitor *alert.Monitor,
	multipliers tradestats.MultiplierTable, jwtSecret string, logger *zap.Logger) *Handler {
	return &Handler{
		store:       store,
		sync:        sync,
		monitor:     monitor,
		multipliers: multipliers,
		jwtSecret:   jwtSecret,
		logger:      logger,
	}
}

// Auth Handlers

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username    string `json:"username" binding:"required,min=3"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	id, err := h.store.CreateUser(c.Request.Context(), req.Username, req.DisplayName, string(hash))
	if err != nil {
		h.logger.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user created", "id": id})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, hash, err := h.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := GenerateToken(user.ID, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Data Handlers

func (h *Handler) GetKlines(c *gin.Context) {
	sym, err := symbol.Parse(c.Param("symbol"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "120"))

	bars, err := h.store.LoadRecentBars(c.Request.Context(), sym.Market, sym.Code, days)
	if err != nil {
		h.logger.Error("failed to query klines", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, bars)
}

// Analyze runs the composite scorer over the recent window.
func (h *Handler) Analyze(c *gin.Context) {
	sym, err := symbol.Parse(c.Param("symbol"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := scorer.DefaultConfig()
	bars, err := h.store.LoadRecentBars(c.Request.Context(), sym.Market, sym.Code, cfg.Window)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if len(bars) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no bars for symbol"})
		return
	}
	s, err := series.New(bars)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	res := scorer.NewScorer(cfg).Score(s)
	c.JSON(http.StatusOK, gin.H{"symbol": sym.String(), "analysis": res})
}

// Portfolio analyzes the caller's most recent position snapshot.
func (h *Handler) Portfolio(c *gin.Context) {
	uid := userID(c)
	ctx := c.Request.Context()

	accounts, err := h.store.ListActiveAccounts(ctx, uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}

	day, ok, err := h.store.LatestPositionDate(ctx, uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, portfolio.NewAnalyzer(portfolio.DefaultConfig()).
			Analyze(nil, nil, time.Now().UTC()))
		return
	}

	positions, err := h.store.GetPositions(ctx, ids, day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var snapshot *model.AccountSnapshot
	if len(ids) > 0 {
		snapshot, _ = h.store.GetAccountSnapshot(ctx, ids[0], day)
	}

	res := portfolio.NewAnalyzer(portfolio.DefaultConfig()).Analyze(positions, snapshot, day)
	c.JSON(http.StatusOK, res)
}

// TradeStats pairs the caller's fills and derives statistics.
func (h *Handler) TradeStats(c *gin.Context) {
	uid := userID(c)
	ctx := c.Request.Context()
	days, _ := strconv.Atoi(c.DefaultQuery("days", "365"))

	accounts, err := h.store.ListActiveAccounts(ctx, uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}

	from := time.Now().UTC().AddDate(0, 0, -days)
	fills, err := h.store.ListFills(ctx, ids, from, time.Time{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	matcher := tradestats.NewMatcher(h.multipliers)
	trades := matcher.Match(fills)
	stats := tradestats.NewCalculator(5).Calculate(trades)

	c.JSON(http.StatusOK, gin.H{
		"round_trips": len(trades),
		"open_lots":   matcher.OpenLots(),
		"residuals":   matcher.Residuals(),
		"statistics":  stats,
	})
}

// RunBacktest replays a strategy over persisted bars.
func (h *Handler) RunBacktest(c *gin.Context) {
	var req struct {
		Symbol       string                 `json:"symbol" binding:"required"`
		StrategyType string                 `json:"strategy_type" binding:"required"`
		Config       map[string]interface{} `json:"config"`
		InitialCash  decimal.Decimal        `json:"initial_cash"`
		FeeRate      decimal.Decimal        `json:"fee_rate"`
		StartTime    time.Time              `json:"start_time" binding:"required"`
		EndTime      time.Time              `json:"end_time" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sym, err := symbol.Parse(req.Symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bars, err := h.store.LoadBars(c.Request.Context(), sym.Market, sym.Code, req.StartTime, req.EndTime)
	if err != nil {
		h.logger.Error("failed to fetch bars for backtest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch data"})
		return
	}

	strat, err := backtest.NewStrategy(req.StrategyType, req.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.InitialCash.IsZero() {
		req.InitialCash = decimal.NewFromInt(100000)
	}
	engine := backtest.NewEngine(strat, req.InitialCash, req.FeeRate)
	c.JSON(http.StatusOK, engine.Run(bars))
}

// Sync triggers a sync action for the caller.
func (h *Handler) Sync(c *gin.Context) {
	uid := userID(c)
	ctx := c.Request.Context()

	switch model.SyncType(c.Param("type")) {
	case model.SyncPositions:
		c.JSON(http.StatusOK, h.sync.SyncPositions(ctx, uid))
	case model.SyncTrades:
		c.JSON(http.StatusOK, h.sync.SyncTrades(ctx, uid, time.Time{}, time.Time{}))
	case model.SyncWatchlist:
		c.JSON(http.StatusOK, h.sync.SyncWatchlist(ctx, uid))
	case model.SyncKlines:
		var req struct {
			Codes []string `json:"codes"`
			Days  int      `json:"days"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		syms, err := symbol.ParseAll(req.Codes)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, h.sync.SyncKlines(ctx, uid, syms, req.Days))
	case model.SyncAll:
		c.JSON(http.StatusOK, h.sync.SyncAll(ctx, uid))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sync type"})
	}
}

// Alert Handlers

func (h *Handler) CreateAlert(c *gin.Context) {
	var req struct {
		Symbol          string          `json:"symbol" binding:"required"`
		AlertType       model.AlertType `json:"alert_type" binding:"required"`
		TargetPrice     decimal.Decimal `json:"target_price"`
		TargetChangePct decimal.Decimal `json:"target_change_pct"`
		BasePrice       decimal.Decimal `json:"base_price"`
		Notes           string          `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sym, err := symbol.Parse(req.Symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.store.CreateAlert(c.Request.Context(), model.PriceAlert{
		UserID:          userID(c),
		Market:          sym.Market,
		Code:            sym.Code,
		AlertType:       req.AlertType,
		TargetPrice:     req.TargetPrice,
		TargetChangePct: req.TargetChangePct,
		BasePrice:       req.BasePrice,
		Notes:           req.Notes,
	})
	if err != nil {
		h.logger.Error("failed to create alert", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create alert"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) ListAlerts(c *gin.Context) {
	alerts, err := h.store.ListActiveAlerts(c.Request.Context(), userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// CheckAlerts runs one evaluation pass over the caller's alerts.
func (h *Handler) CheckAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.CheckAll(c.Request.Context(), userID(c)))
}
