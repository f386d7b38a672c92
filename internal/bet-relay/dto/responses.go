package dto

import "github.com/radieske/ethbet-relay/internal/bet-relay/domain"

// SubmittedResponse: a transação foi aceita para submissão, não confirmada
type SubmittedResponse struct {
	Status string `json:"status"` // SUBMITTED
}

type ActiveBetsResponse struct {
	Results []domain.BetView `json:"results"`
	Count   int              `json:"count"`
}

type BetListResponse struct {
	EtherBets []domain.BetView `json:"etherBets"`
}

type BetResponse struct {
	EtherBet domain.BetView `json:"etherBet"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
