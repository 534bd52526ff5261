package arenadto

// Stable error codes carried on the wire and shared with the state API.
const (
	CodeGameNotFound      = "game_not_found"
	CodeChallengeNotFound = "challenge_not_found"
	CodeNotYourTurn       = "not_your_turn"
	CodeGameFinished      = "game_finished"
	CodeIllegalMove       = "illegal_move"
	CodeMalformedInput    = "malformed_input"
	CodeForbidden         = "forbidden"
	CodeConflict          = "conflict"
	CodeInternal          = "internal"
)

type DomainError struct {
	Code    string
	Message string
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "arena error"
}
