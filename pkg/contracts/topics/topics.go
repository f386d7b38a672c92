package topics

const (
	// Bets
	BetLifecycle = "bet_lifecycle"

	// Redis Pub/Sub
	BetEventsBroadcast = "bet_events_broadcast"
)
