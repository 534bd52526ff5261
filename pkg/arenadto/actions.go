package arenadto

// Client → server frames.

const (
	ActionMove   = "move"
	ActionResign = "resign"

	FrameHeartbeat = "heartbeat"
	FrameLogout    = "logout"
)

// GameAction is read off a game socket.
type GameAction struct {
	Action string `json:"action"`
	Move   string `json:"move,omitempty"`
}

// LobbyFrame is read off a lobby socket.
type LobbyFrame struct {
	Type string `json:"type"`
}
