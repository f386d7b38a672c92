package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Address: em subscribe, restringe os eventos às apostas desse endereço
type ClientMsg struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
}
