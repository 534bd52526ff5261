package arenadto

// Server → client frames. Every frame carries Type so clients can dispatch
// on it; payloads are flattened into the frame rather than nested.

const (
	EventGameUpdate        = "game_update"
	EventError             = "error"
	EventUserStatus        = "user_status"
	EventChallengeReceived = "challenge_received"
	EventChallengeRejected = "challenge_rejected"
	EventGameStarted       = "game_started"
)

// GameUpdate is broadcast to both participants after an accepted move or
// resignation. Move is empty for resignations.
type GameUpdate struct {
	Type        string `json:"type"`
	GameID      string `json:"game_id"`
	Move        string `json:"move,omitempty"`
	SAN         string `json:"san,omitempty"`
	FEN         string `json:"fen"`
	Status      string `json:"status"`
	CurrentTurn string `json:"current_turn"`
	Winner      string `json:"winner,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	MoveCount   int    `json:"move_count"`
}

// ErrorFrame is sent only to the connection whose action failed.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UserStatus announces online/offline transitions on the global group.
type UserStatus struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

type ChallengeReceived struct {
	Type               string `json:"type"`
	ChallengeID        string `json:"challenge_id"`
	ChallengerID       string `json:"challenger_id"`
	ChallengerUsername string `json:"challenger_username"`
}

type ChallengeRejected struct {
	Type               string `json:"type"`
	ChallengeID        string `json:"challenge_id"`
	ChallengedID       string `json:"challenged_id"`
	ChallengedUsername string `json:"challenged_username"`
}

type GameStarted struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
}
