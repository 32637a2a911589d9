package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stackspad/internal/curve"
	"stackspad/internal/domain"
	"stackspad/internal/storage"
)

// TokenHandler serves token query endpoints.
type TokenHandler struct {
	tokens storage.TokenStore
	trades storage.TradeStore
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(tokens storage.TokenStore, trades storage.TradeStore) *TokenHandler {
	return &TokenHandler{tokens: tokens, trades: trades}
}

// List godoc
// GET /api/tokens?orderBy=created_at&order=desc&graduated=true&limit=50
func (h *TokenHandler) List(c *gin.Context) {
	opts := storage.ListTokensOptions{
		Order:      storage.TokenOrderCreatedAt,
		Descending: c.DefaultQuery("order", "desc") != "asc",
		Limit:      parseLimit(c, 100, 500),
	}
	if c.Query("orderBy") == "market_cap" {
		opts.Order = storage.TokenOrderMarketCap
	}
	if g := c.Query("graduated"); g != "" {
		graduated := g == "true"
		opts.Graduated = &graduated
	}

	tokens, err := h.tokens.List(c.Request.Context(), opts)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch tokens")
		return
	}
	respondSuccess(c, http.StatusOK, newTokenViews(tokens))
}

// Trending godoc
// GET /api/tokens/trending?limit=10
func (h *TokenHandler) Trending(c *gin.Context) {
	graduated := false
	tokens, err := h.tokens.List(c.Request.Context(), storage.ListTokensOptions{
		Order:      storage.TokenOrderMarketCap,
		Descending: true,
		Graduated:  &graduated,
		Limit:      parseLimit(c, 10, 100),
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch trending tokens")
		return
	}
	respondSuccess(c, http.StatusOK, newTokenViews(tokens))
}

// Get godoc
// GET /api/tokens/:identifier
func (h *TokenHandler) Get(c *gin.Context) {
	token, ok := h.resolve(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, newTokenView(token))
}

// Trades godoc
// GET /api/tokens/:identifier/trades?limit=50
func (h *TokenHandler) Trades(c *gin.Context) {
	token, ok := h.resolve(c)
	if !ok {
		return
	}
	trades, err := h.trades.ListByToken(c.Request.Context(), token.Contract, parseLimit(c, 50, 200))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch trades")
		return
	}
	respondSuccess(c, http.StatusOK, newTradeViews(trades))
}

// Progress godoc
// GET /api/tokens/:identifier/progress
func (h *TokenHandler) Progress(c *gin.Context) {
	token, ok := h.resolve(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"contract_address":     token.Contract,
		"market_cap":           domain.DisplayAmount(token.MarketCap),
		"graduation_threshold": domain.DisplayAmount(curve.GraduationThreshold),
		"progress":             curve.GraduationProgress(token.MarketCap),
		"is_graduated":         token.IsGraduated,
	})
}

// resolve looks up the token named by the :identifier path parameter.
// Identifiers containing a dot are contract principals; anything else
// is treated as a symbol, case-insensitively.
func (h *TokenHandler) resolve(c *gin.Context) (*domain.Token, bool) {
	token, err := h.lookup(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "token not found")
			return nil, false
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch token")
		return nil, false
	}
	return token, true
}

func (h *TokenHandler) lookup(ctx context.Context, identifier string) (*domain.Token, error) {
	if strings.Contains(identifier, ".") {
		return h.tokens.GetByContract(ctx, identifier)
	}
	return h.tokens.GetBySymbol(ctx, strings.ToUpper(identifier))
}
