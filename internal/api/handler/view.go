package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"stackspad/internal/curve"
	"stackspad/internal/domain"
)

// View types are the only place base units become display units. Every
// amount below is in whole STX or whole tokens; everything upstream of
// this package stays in 8-decimal base units.

// TokenView is the API shape of a token projection.
type TokenView struct {
	ContractAddress string          `json:"contract_address"`
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	Creator         string          `json:"creator"`
	ImageURI        string          `json:"image_uri,omitempty"`
	Description     string          `json:"description,omitempty"`
	TokensSold      decimal.Decimal `json:"tokens_sold"`
	StxReserve      decimal.Decimal `json:"stx_reserve"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	MarketCap       decimal.Decimal `json:"market_cap"`
	Progress        float64         `json:"graduation_progress"`
	IsGraduated     bool            `json:"is_graduated"`
	GraduatedAt     *time.Time      `json:"graduated_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newTokenView(t *domain.Token) TokenView {
	return TokenView{
		ContractAddress: t.Contract,
		Name:            t.Name,
		Symbol:          t.Symbol,
		Creator:         t.Creator,
		ImageURI:        t.ImageURI,
		Description:     t.Description,
		TokensSold:      domain.DisplayAmount(t.TokensSold),
		StxReserve:      domain.DisplayAmount(t.Reserve),
		CurrentPrice:    domain.DisplayAmount(t.CurrentPrice),
		MarketCap:       domain.DisplayAmount(t.MarketCap),
		Progress:        curve.GraduationProgress(t.MarketCap),
		IsGraduated:     t.IsGraduated,
		GraduatedAt:     t.GraduatedAt,
		CreatedAt:       t.CreatedAt,
	}
}

func newTokenViews(tokens []*domain.Token) []TokenView {
	views := make([]TokenView, len(tokens))
	for i, t := range tokens {
		views[i] = newTokenView(t)
	}
	return views
}

// TradeView is the API shape of a trade row.
type TradeView struct {
	TxID         string          `json:"tx_id"`
	Token        string          `json:"token"`
	Trader       string          `json:"trader"`
	Type         string          `json:"trade_type"`
	StxAmount    decimal.Decimal `json:"stx_amount"`
	TokenAmount  decimal.Decimal `json:"token_amount"`
	PriceAtTrade decimal.Decimal `json:"price_at_trade"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	CreatorFee   decimal.Decimal `json:"creator_fee"`
	BlockHeight  int64           `json:"block_height"`
	ObservedAt   time.Time       `json:"observed_at"`
}

func newTradeView(t *domain.Trade) TradeView {
	return TradeView{
		TxID:         t.TxID,
		Token:        t.Token,
		Trader:       t.Trader,
		Type:         string(t.Type),
		StxAmount:    domain.DisplayAmount(t.StxAmount),
		TokenAmount:  domain.DisplayAmount(t.TokenAmount),
		PriceAtTrade: domain.DisplayAmount(t.PriceAtTrade),
		PlatformFee:  domain.DisplayAmount(t.PlatformFee),
		CreatorFee:   domain.DisplayAmount(t.CreatorFee),
		BlockHeight:  t.BlockHeight,
		ObservedAt:   t.ObservedAt,
	}
}

func newTradeViews(trades []*domain.Trade) []TradeView {
	views := make([]TradeView, len(trades))
	for i, t := range trades {
		views[i] = newTradeView(t)
	}
	return views
}

// ActivityView is the API shape of an activity entry.
type ActivityView struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	TxID      string          `json:"tx_id"`
	Address   string          `json:"address"`
	Token     string          `json:"token,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func newActivityView(a *domain.Activity) ActivityView {
	v := ActivityView{
		ID:        a.ID,
		EventType: string(a.EventType),
		TxID:      a.TxID,
		Address:   a.Address,
		Token:     a.Token,
		CreatedAt: a.CreatedAt,
	}
	if a.Details != "" && json.Valid([]byte(a.Details)) {
		v.Details = json.RawMessage(a.Details)
	}
	return v
}

// LeaderboardView is the API shape of a leaderboard entry.
type LeaderboardView struct {
	Address        string          `json:"address"`
	TotalTrades    int             `json:"total_trades"`
	TotalVolumeStx decimal.Decimal `json:"total_volume_stx"`
}

func newLeaderboardView(e *domain.LeaderboardEntry) LeaderboardView {
	return LeaderboardView{
		Address:        e.Address,
		TotalTrades:    e.TotalTrades,
		TotalVolumeStx: domain.DisplayAmount(e.TotalVolumeStx),
	}
}
