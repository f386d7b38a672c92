package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/ethbet-relay/internal/bet-relay/auth"
	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
	"github.com/radieske/ethbet-relay/internal/bet-relay/dto"
)

// Service são as operações do orquestrador expostas pela API
type Service interface {
	CreateBet(ctx context.Context, maker string, amount, edge decimal.Decimal, tier domain.FeeTier) error
	CancelBet(ctx context.Context, betID int64, requester string, tier domain.FeeTier) error
	CallBet(ctx context.Context, betID int64, caller string, tier domain.FeeTier) error

	ActiveBets(ctx context.Context, opts domain.ListOptions) ([]domain.BetView, int, error)
	UserActiveBetsCount(ctx context.Context, user string) (int, error)
	ExecutedBets(ctx context.Context) ([]domain.BetView, error)
	PendingBets(ctx context.Context) ([]domain.BetView, error)
	BetInfo(ctx context.Context, id int64) (domain.BetView, error)
}

// API expõe as rotas REST de apostas e o websocket de eventos
type API struct {
	Log *zap.Logger
	Svc Service
	WS  http.HandlerFunc // opcional
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/bets/active", a.listActive)
	r.Get("/v1/bets/active/count", a.countUserActive)
	r.Get("/v1/bets/executed", a.listExecuted)
	r.Get("/v1/bets/pending", a.listPending)
	r.Get("/v1/bets/{id}", a.getBet)

	r.Post("/v1/bets", a.createBet)
	r.Post("/v1/bets/{id}/cancel", a.cancelBet)
	r.Post("/v1/bets/{id}/call", a.callBet)

	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError traduz os erros do domínio para status HTTP
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Message: verr.Error(), Code: string(verr.Code)})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrLockContention):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, auth.ErrBadPayload):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, auth.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Message: err.Error()})
	default:
		a.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Message: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Message: msg})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
