// Package notify transmite os eventos de ciclo de vida das apostas.
// Falhas de entrega são logadas e nunca sobem para quem publicou.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
	"github.com/radieske/ethbet-relay/internal/bet-relay/users"
	"github.com/radieske/ethbet-relay/pkg/contracts/events"
)

// Sink recebe o evento já montado
type Sink interface {
	Name() string
	Send(ctx context.Context, e events.BetLifecycle) error
}

// Publisher resolve os nomes e entrega o evento a cada sink
type Publisher struct {
	Log   *zap.Logger
	Users users.Directory
	Sinks []Sink

	OnSent  func(sink string) // métricas
	OnError func(sink string) // métricas
}

func NewPublisher(log *zap.Logger, dir users.Directory, sinks ...Sink) *Publisher {
	return &Publisher{Log: log, Users: dir, Sinks: sinks}
}

func (p *Publisher) Publish(ctx context.Context, name string, bet domain.Bet) {
	ev := events.BetLifecycle{
		EventID:  uuid.NewString(),
		Name:     name,
		BetID:    bet.ID,
		State:    bet.State(),
		Bet:      p.view(ctx, bet),
		TsUnixMs: time.Now().UnixMilli(),
	}

	for _, s := range p.Sinks {
		if err := s.Send(ctx, ev); err != nil {
			p.Log.Warn("notify failed",
				zap.String("sink", s.Name()), zap.String("event", name),
				zap.Int64("bet_id", bet.ID), zap.Error(err))
			if p.OnError != nil {
				p.OnError(s.Name())
			}
			continue
		}
		if p.OnSent != nil {
			p.OnSent(s.Name())
		}
	}
}

// view resolve maker e caller; sem diretório o evento sai sem nomes
func (p *Publisher) view(ctx context.Context, bet domain.Bet) domain.BetView {
	v := domain.BetView{Bet: bet}
	if p.Users == nil {
		return v
	}

	addrs := []string{bet.Maker}
	if bet.CallerUser != "" {
		addrs = append(addrs, bet.CallerUser)
	}
	names, err := p.Users.Usernames(ctx, addrs)
	if err != nil {
		p.Log.Warn("username lookup failed", zap.Int64("bet_id", bet.ID), zap.Error(err))
		return v
	}
	v.Username = names[bet.Maker]
	v.CallerUsername = names[bet.CallerUser]
	return v
}
