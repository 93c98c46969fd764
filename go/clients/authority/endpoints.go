package authority

const (
	// DefaultBaseURL is the authority address used by the reference deployment.
	DefaultBaseURL = "http://127.0.0.1:5000"

	// API Endpoints
	CreateGameEndpoint = "/game/create"
	JoinGameEndpoint   = "/game/join"
	MoveEndpoint       = "/game/move"

	// Headers
	RequestIDHeader = "X-Request-ID"
	SessionIDHeader = "X-Session-ID"
	UserAgent       = "hexfort-client"
)
