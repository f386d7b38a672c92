package events

import "github.com/radieske/ethbet-relay/internal/bet-relay/domain"

// Nomes dos eventos de ciclo de vida
const (
	BetCreated   = "BetCreated"
	BetCancelled = "BetCancelled"
	BetCalled    = "BetCalled"
	BetExecuted  = "BetExecuted"
)

// BetLifecycle é publicado no tópico "bet_lifecycle" e no canal Redis de broadcast.
// Bet leva o registro completo no estado atual, com nomes já resolvidos.
type BetLifecycle struct {
	EventID  string         `json:"event_id"`
	Name     string         `json:"name"`
	BetID    int64          `json:"bet_id"`
	State    domain.State   `json:"state"`
	Bet      domain.BetView `json:"bet"`
	TsUnixMs int64          `json:"ts_unix_ms"`
}

// Addresses devolve maker e caller (se houver), usado pelo filtro do websocket
func (e BetLifecycle) Addresses() []string {
	if e.Bet.CallerUser == "" {
		return []string{e.Bet.Maker}
	}
	return []string{e.Bet.Maker, e.Bet.CallerUser}
}

