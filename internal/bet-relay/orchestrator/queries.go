package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
)

// ActiveBets lista as apostas abertas (página fixa) e o total
func (o *Orchestrator) ActiveBets(ctx context.Context, opts domain.ListOptions) ([]domain.BetView, int, error) {
	bets, total, err := o.repo.ListActive(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	return o.views(ctx, bets), total, nil
}

func (o *Orchestrator) UserActiveBetsCount(ctx context.Context, user string) (int, error) {
	return o.repo.CountUserActive(ctx, user)
}

func (o *Orchestrator) ExecutedBets(ctx context.Context) ([]domain.BetView, error) {
	bets, err := o.repo.ListExecuted(ctx, domain.RecentLimit)
	if err != nil {
		return nil, err
	}
	return o.views(ctx, bets), nil
}

func (o *Orchestrator) PendingBets(ctx context.Context) ([]domain.BetView, error) {
	bets, err := o.repo.ListPending(ctx, domain.RecentLimit)
	if err != nil {
		return nil, err
	}
	return o.views(ctx, bets), nil
}

func (o *Orchestrator) BetInfo(ctx context.Context, id int64) (domain.BetView, error) {
	b, err := o.repo.Get(ctx, id)
	if err != nil {
		return domain.BetView{}, err
	}
	return o.views(ctx, []domain.Bet{b})[0], nil
}

// views resolve todos os endereços numa consulta só; sem nomes se o diretório falhar
func (o *Orchestrator) views(ctx context.Context, bets []domain.Bet) []domain.BetView {
	out := make([]domain.BetView, len(bets))
	for i, b := range bets {
		out[i] = domain.BetView{Bet: b}
	}
	if o.users == nil || len(bets) == 0 {
		return out
	}

	seen := map[string]struct{}{}
	var addrs []string
	for _, b := range bets {
		for _, a := range []string{b.Maker, b.CallerUser} {
			if _, ok := seen[a]; a != "" && !ok {
				seen[a] = struct{}{}
				addrs = append(addrs, a)
			}
		}
	}

	names, err := o.users.Usernames(ctx, addrs)
	if err != nil {
		o.log.Warn("username lookup failed", zap.Error(err))
		return out
	}
	for i := range out {
		out[i].Username = names[out[i].Maker]
		out[i].CallerUsername = names[out[i].CallerUser]
	}
	return out
}
