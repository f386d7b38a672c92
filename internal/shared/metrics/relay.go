package metrics

import "github.com/prometheus/client_golang/prometheus"

// Relay agrupa os contadores do relay de apostas
type Relay struct {
	Submissions    *prometheus.CounterVec
	Confirmations  *prometheus.CounterVec
	LedgerErrors   *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	Reconciled     prometheus.Counter
	LockContention prometheus.Counter
}

// NewRelay cria e registra os contadores em reg
func NewRelay(reg prometheus.Registerer) *Relay {
	r := &Relay{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bet_relay_submissions_total", Help: "transações submetidas ao contrato",
		}, []string{"action"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bet_relay_confirmations_total", Help: "transações confirmadas",
		}, []string{"action"}),
		LedgerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bet_relay_ledger_errors_total", Help: "transações que falharam após a submissão",
		}, []string{"action"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bet_relay_notifications_total", Help: "eventos entregues por sink e resultado",
		}, []string{"sink", "result"}),
		Reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bet_relay_reconciled_total", Help: "execuções recuperadas pela reconciliação",
		}),
		LockContention: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bet_relay_lock_contention_total", Help: "cancel/call recusados por lock ocupado",
		}),
	}
	reg.MustRegister(r.Submissions, r.Confirmations, r.LedgerErrors, r.Notifications, r.Reconciled, r.LockContention)
	return r
}
