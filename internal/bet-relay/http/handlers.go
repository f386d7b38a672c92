package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radieske/ethbet-relay/internal/bet-relay/auth"
	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
	"github.com/radieske/ethbet-relay/internal/bet-relay/dto"
)

func (a *API) listActive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := domain.ParseListOptions(q.Get("orderField"), q.Get("orderDirection"), q.Get("offset"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	bets, total, err := a.Svc.ActiveBets(r.Context(), opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ActiveBetsResponse{Results: nonNil(bets), Count: total})
}

func (a *API) countUserActive(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("userAddress")
	if user == "" {
		badRequest(w, "userAddress required")
		return
	}
	if !common.IsHexAddress(user) {
		badRequest(w, "invalid userAddress")
		return
	}
	n, err := a.Svc.UserActiveBetsCount(r.Context(), auth.NormalizeAddress(user))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CountResponse{Count: n})
}

func (a *API) listExecuted(w http.ResponseWriter, r *http.Request) {
	bets, err := a.Svc.ExecutedBets(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BetListResponse{EtherBets: nonNil(bets)})
}

func (a *API) listPending(w http.ResponseWriter, r *http.Request) {
	bets, err := a.Svc.PendingBets(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BetListResponse{EtherBets: nonNil(bets)})
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid bet id")
		return
	}
	bet, err := a.Svc.BetInfo(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BetResponse{EtherBet: bet})
}

func (a *API) createBet(w http.ResponseWriter, r *http.Request) {
	msg, ok := decodeSigned(w, r)
	if !ok {
		return
	}
	var data dto.CreateBetData
	if err := auth.Open(msg, &data); err != nil {
		a.writeError(w, r, err)
		return
	}
	tier, err := domain.ParseFeeTier(data.GasPriceType)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.Svc.CreateBet(r.Context(), msg.Signer(), data.Amount, data.Edge, tier); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.SubmittedResponse{Status: "SUBMITTED"})
}

func (a *API) cancelBet(w http.ResponseWriter, r *http.Request) {
	id, tier, msg, ok := a.betAction(w, r)
	if !ok {
		return
	}
	if err := a.Svc.CancelBet(r.Context(), id, msg.Signer(), tier); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.SubmittedResponse{Status: "SUBMITTED"})
}

func (a *API) callBet(w http.ResponseWriter, r *http.Request) {
	id, tier, msg, ok := a.betAction(w, r)
	if !ok {
		return
	}
	if err := a.Svc.CallBet(r.Context(), id, msg.Signer(), tier); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.SubmittedResponse{Status: "SUBMITTED"})
}

// betAction valida a assinatura e confere que o id assinado é o da rota
func (a *API) betAction(w http.ResponseWriter, r *http.Request) (int64, domain.FeeTier, auth.SignedMessage, bool) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid bet id")
		return 0, "", auth.SignedMessage{}, false
	}
	msg, ok := decodeSigned(w, r)
	if !ok {
		return 0, "", auth.SignedMessage{}, false
	}
	var data dto.BetActionData
	if err := auth.Open(msg, &data); err != nil {
		a.writeError(w, r, err)
		return 0, "", auth.SignedMessage{}, false
	}
	if data.ID != id {
		badRequest(w, "signed bet id does not match the route")
		return 0, "", auth.SignedMessage{}, false
	}
	tier, err := domain.ParseFeeTier(data.GasPriceType)
	if err != nil {
		a.writeError(w, r, err)
		return 0, "", auth.SignedMessage{}, false
	}
	return id, tier, msg, true
}

func decodeSigned(w http.ResponseWriter, r *http.Request) (auth.SignedMessage, bool) {
	var msg auth.SignedMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		badRequest(w, "bad json")
		return msg, false
	}
	return msg, true
}

func nonNil(b []domain.BetView) []domain.BetView {
	if b == nil {
		return []domain.BetView{}
	}
	return b
}
