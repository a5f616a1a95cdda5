package api

// SessionResponse is returned from GET /session.
type SessionResponse struct {
	Status    string   `json:"status"`
	Subject   string   `json:"subject,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
