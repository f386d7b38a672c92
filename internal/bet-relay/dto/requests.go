package dto

import "github.com/shopspring/decimal"

// CreateBetData é o conteúdo assinado de POST /v1/bets
type CreateBetData struct {
	Amount       decimal.Decimal `json:"amount"`
	Edge         decimal.Decimal `json:"edge"`
	GasPriceType string          `json:"gasPriceType"` // low | medium | high
}

// BetActionData é o conteúdo assinado de cancel e call; ID amarra a assinatura à aposta da rota
type BetActionData struct {
	ID           int64  `json:"id"`
	GasPriceType string `json:"gasPriceType"`
}
