package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stackspad/internal/curve"
	"stackspad/internal/domain"
	"stackspad/internal/storage"
)

// QuoteHandler prices prospective trades against the current curve
// state. Quotes use the exact contract arithmetic, so the amount shown
// here is the amount the chain would settle at the same state.
type QuoteHandler struct {
	tokens storage.TokenStore
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(tokens storage.TokenStore) *QuoteHandler {
	return &QuoteHandler{tokens: tokens}
}

// Buy godoc
// GET /api/quote/buy?token=FROG&stx_amount=1000000000
//
// stx_amount is in micro-STX base units.
func (h *QuoteHandler) Buy(c *gin.Context) {
	token, ok := h.resolveQuery(c)
	if !ok {
		return
	}
	stxIn, ok := parseUintQuery(c, "stx_amount")
	if !ok {
		return
	}
	if token.IsGraduated {
		respondError(c, http.StatusConflict, "ERR_GRADUATED", "token has graduated; curve trading is closed")
		return
	}

	tokensOut := curve.QuoteBuy(stxIn, token.TokensSold)
	respondSuccess(c, http.StatusOK, gin.H{
		"token":          token.Contract,
		"stx_amount":     domain.DisplayAmount(stxIn),
		"tokens_out":     domain.DisplayAmount(tokensOut),
		"price":          domain.DisplayAmount(curve.Price(token.TokensSold)),
		"tokens_out_raw": tokensOut,
	})
}

// Sell godoc
// GET /api/quote/sell?token=FROG&token_amount=90909090909
//
// token_amount is in 8-decimal token base units.
func (h *QuoteHandler) Sell(c *gin.Context) {
	token, ok := h.resolveQuery(c)
	if !ok {
		return
	}
	tokensIn, ok := parseUintQuery(c, "token_amount")
	if !ok {
		return
	}
	if token.IsGraduated {
		respondError(c, http.StatusConflict, "ERR_GRADUATED", "token has graduated; curve trading is closed")
		return
	}
	if tokensIn > token.TokensSold {
		respondError(c, http.StatusBadRequest, "ERR_EXCEEDS_SUPPLY", "token_amount exceeds tokens sold on the curve")
		return
	}

	q := curve.QuoteSell(tokensIn, token.TokensSold)
	respondSuccess(c, http.StatusOK, gin.H{
		"token":        token.Contract,
		"token_amount": domain.DisplayAmount(tokensIn),
		"gross_stx":    domain.DisplayAmount(q.Gross),
		"platform_fee": domain.DisplayAmount(q.PlatformFee),
		"creator_fee":  domain.DisplayAmount(q.CreatorFee),
		"net_stx":      domain.DisplayAmount(q.Net),
		"net_stx_raw":  q.Net,
	})
}

func (h *QuoteHandler) resolveQuery(c *gin.Context) (*domain.Token, bool) {
	identifier := c.Query("token")
	if identifier == "" {
		respondError(c, http.StatusBadRequest, "ERR_MISSING_PARAM", "token is required")
		return nil, false
	}

	ctx := c.Request.Context()
	var (
		token *domain.Token
		err   error
	)
	if strings.Contains(identifier, ".") {
		token, err = h.tokens.GetByContract(ctx, identifier)
	} else {
		token, err = h.tokens.GetBySymbol(ctx, strings.ToUpper(identifier))
	}
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
