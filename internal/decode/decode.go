// Package decode turns normalized chain transactions into domain events.
//
// Decoding is fail-soft: anything that is not a successful launchpad
// contract call with a well-formed print event yields no event rather
// than an error. The chain delivers plenty of traffic that is simply
// not ours, and a malformed payload must never stall the sync loop.
package decode

import (
	"strings"

	"stackspad/internal/chain"
	"stackspad/internal/domain"
)

// Contract functions the decoder dispatches on.
const (
	fnRegisterToken = "register-token"
	fnBuy           = "buy"
	fnSell          = "sell"
	fnGraduate      = "graduate"
	fnGraduateToken = "graduate-token"
)

// Print event tags emitted by the contracts.
const (
	tagTokenCreated        = "token-created"
	tagBuy                 = "buy"
	tagSell                = "sell"
	tagTokenGraduated      = "token-graduated"
	tagGraduationInitiated = "graduation-initiated"
)

// Decode extracts the domain event carried by tx, if any. The second
// return is false when the transaction is not a successful launchpad
// call or its print events do not carry a usable payload.
func Decode(tx *chain.Transaction) (*domain.Event, bool) {
	if tx == nil || !tx.Succeeded() || tx.Call == nil {
		return nil, false
	}

	base := domain.Event{
		TxID:        tx.TxID,
		Sender:      tx.Sender,
		BlockHeight: tx.BlockHeight,
		BlockTime:   tx.BlockTime,
	}

	switch tx.Call.FunctionName {
	case fnRegisterToken:
		return decodeRegistered(tx, base)
	case fnBuy:
		return decodeBuy(tx, base)
	case fnSell:
		return decodeSell(tx, base)
	case fnGraduate, fnGraduateToken:
		return decodeGraduation(tx, base)
	default:
		return nil, false
	}
}

func decodeRegistered(tx *chain.Transaction, base domain.Event) (*domain.Event, bool) {
	payload, ok := findPrint(tx, tagTokenCreated)
	if !ok {
		// The poll feed sometimes omits receipt events for older
		// transactions; fall back to the call arguments.
		return registeredFromArgs(tx, base)
	}

	reg := &domain.TokenRegistered{
		Name:        payload.Str("name"),
		Symbol:      payload.Str("symbol"),
		Contract:    payload.Str("bonding_curve"),
		ImageURI:    payload.Str("image_uri"),
		Description: payload.Str("description"),
	}
	if reg.Contract == "" {
		reg.Contract = payload.Str("token")
	}
	if reg.Symbol == "" || reg.Contract == "" {
		return nil, false
	}

	base.Type = domain.EventTokenRegistered
	base.Registered = reg
	return &base, true
}

// registeredFromArgs recovers a registration from the contract-call
// arguments when no print event is available.
func registeredFromArgs(tx *chain.Transaction, base domain.Event) (*domain.Event, bool) {
	reg := &domain.TokenRegistered{
		Name:        argString(tx.Call, "name"),
		Symbol:      argString(tx.Call, "symbol"),
		Contract:    argString(tx.Call, "bonding-curve"),
		Description: argString(tx.Call, "description"),
		ImageURI:    argString(tx.Call, "image-uri"),
	}
	if reg.Symbol == "" || reg.Contract == "" {
		return nil, false
	}
	base.Type = domain.EventTokenRegistered
	base.Registered = reg
	return &base, true
}

func decodeBuy(tx *chain.Transaction, base domain.Event) (*domain.Event, bool) {
	payload, ok := findPrint(tx, tagBuy)
	if !ok {
		return nil, false
	}
	stx, okStx := payload.Uint("stx_amount")
	tokens, okTok := payload.Uint("tokens_received")
	token := payload.Str("token")
	if !okStx || !okTok || token == "" {
		return nil, false
	}

	base.Type = domain.EventBought
	base.Trade = &domain.TradeEvent{Token: token, StxAmount: stx, TokenAmount: tokens}
	return &base, true
}

func decodeSell(tx *chain.Transaction, base domain.Event) (*domain.Event, bool) {
	payload, ok := findPrint(tx, tagSell)
	if !ok {
		return nil, false
	}
	stx, okStx := payload.Uint("stx_received")
	tokens, okTok := payload.Uint("tokens_sold")
	token := payload.Str("token")
	if !okStx || !okTok || token == "" {
		return nil, false
	}

	base.Type = domain.EventSold
	base.Trade = &domain.TradeEvent{Token: token, StxAmount: stx, TokenAmount: tokens}
	return &base, true
}

func decodeGraduation(tx *chain.Transaction, base domain.Event) (*domain.Event, bool) {
	payload, ok := findPrint(tx, tagTokenGraduated)
	if !ok {
		payload, ok = findPrint(tx, tagGraduationInitiated)
	}
	if !ok {
		return nil, false
	}
	token := payload.Str("token")
	if token == "" {
		return nil, false
	}

	base.Type = domain.EventGraduated
	base.Graduation = &domain.GraduationEvent{Token: token}
	return &base, true
}

// findPrint scans the transaction's print events for one whose payload
// carries the given event tag.
func findPrint(tx *chain.Transaction, tag string) (chain.Payload, bool) {
	for _, ev := range tx.Prints {
		if ev.Payload.Str("event") == tag {
			return ev.Payload, true
		}
	}
	return nil, false
}

// argString extracts a string-ish value from a call argument repr,
// stripping the quoting Clarity reprs carry.
func argString(call *chain.ContractCall, name string) string {
	arg := call.Arg(name)
	if arg == nil {
		return ""
	}
	s := strings.TrimSpace(arg.Repr)
	if v, ok := stripSome(s); ok {
		s = v
	}
	if s == "none" {
		return ""
	}
	s = strings.TrimPrefix(s, "u\"")
	s = strings.TrimPrefix(s, "\"")
	s = strings.TrimSuffix(s, "\"")
	s = strings.TrimPrefix(s, "'")
	return s
}

func stripSome(s string) (string, bool) {
	if !strings.HasPrefix(s, "(some ") || !strings.HasSuffix(s, ")") {
		return s, false
	}
	return strings.TrimSpace(s[len("(some ") : len(s)-1]), true
}
