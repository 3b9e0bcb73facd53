package protocol

import "encoding/json"

// Message types.
const (
	// Client -> server.
	TypePauseOrders  = "pauseOrders"
	TypeResumeOrders = "resumeOrders"
	TypeServeOrder   = "serveOrder"

	// Server -> client.
	TypeNewOrder      = "newOrder"
	TypeOrderSuccess  = "orderSuccess"
	TypeOrderFailed   = "orderFailed"
	TypeEconomyUpdate = "economyUpdate"
	TypeGameOver      = "gameOver"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
