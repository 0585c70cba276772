// Package api exposes the settlement engine over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/propdesk/propdesk/engine"
)

// Handler binds the settlement API routes to the engine.
type Handler struct {
	eng *engine.Engine
	log *slog.Logger
}

func NewHandler(eng *engine.Engine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{eng: eng, log: log}
}

// RegisterRoutes binds the handler to the gin engine.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/orders", h.OpenOrder)
		api.POST("/positions/:id/close", h.ClosePosition)
		api.GET("/positions", h.ListPositions)
		api.GET("/trades", h.ListTrades)
		api.GET("/accounts/:id", h.GetAccount)
		api.GET("/quotes/:symbol", h.GetQuote)
	}
}

type openOrderRequest struct {
	AccountID  string   `json:"account_id" binding:"required"`
	Symbol     string   `json:"symbol" binding:"required"`
	Side       string   `json:"side" binding:"required"`
	Volume     float64  `json:"volume" binding:"required"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
}

// OpenOrder accepts an immediate market order.
func (h *Handler) OpenOrder(c *gin.Context) {
	var req openOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, err := engine.ParseSide(req.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pos, err := h.eng.Open(c.Request.Context(), engine.OpenRequest{
		AccountID:  req.AccountID,
		Symbol:     req.Symbol,
		Side:       side,
		Volume:     req.Volume,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pos)
}

// ClosePosition settles one open position at the current market price.
func (h *Handler) ClosePosition(c *gin.Context) {
	trade, err := h.eng.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// ListPositions returns the account's open positions, freshly marked.
func (h *Handler) ListPositions(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id is required"})
		return
	}
	positions, err := h.eng.Mark(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if positions == nil {
		positions = []*engine.Position{}
	}
	c.JSON(http.StatusOK, positions)
}

// ListTrades returns the account's closed trade history.
func (h *Handler) ListTrades(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id is required"})
		return
	}
	trades, err := h.eng.Trades(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if trades == nil {
		trades = []*engine.Trade{}
	}
	c.JSON(http.StatusOK, trades)
}

// GetAccount returns the account's ledger snapshot.
func (h *Handler) GetAccount(c *gin.Context) {
	acct, err := h.eng.Account(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

// GetQuote returns the latest quote for a symbol.
func (h *Handler) GetQuote(c *gin.Context) {
	q, err := h.eng.Quote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// writeError maps ledger errors to HTTP responses. Typed errors carry enough
// detail for the trader to act; anything unrecognized is a 500 with a
// generic message so storage internals never leak.
func (h *Handler) writeError(c *gin.Context, err error) {
	var marginErr *engine.InsufficientMarginError
	var volumeErr *engine.InvalidVolumeError

	switch {
	case errors.As(err, &volumeErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": volumeErr.Error(),
			"min":   volumeErr.Min,
			"max":   volumeErr.Max,
		})
	case errors.As(err, &marginErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":           marginErr.Error(),
			"required_margin": marginErr.Required,
			"free_margin":     marginErr.Free,
		})
	case errors.Is(err, engine.ErrQuoteUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "quote unavailable, try again"})
	case errors.Is(err, engine.ErrAccountInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": "trading account not active"})
	case errors.Is(err, engine.ErrAlreadyClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "position already closed"})
	case errors.Is(err, engine.ErrPositionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "position not found"})
	case errors.Is(err, engine.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
	default:
		h.log.Error("internal error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
