package crosstab

import "time"

// AuthState is the typed value the UI layer renders. The UI's intents
// (login, logout) map onto the /auth/login and /auth/logout endpoints.
type AuthState struct {
	LoggedIn   bool              `json:"loggedIn"`
	Subject    string            `json:"subject,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SignalLogout is the only signal type tabs act on, and only as a hint:
// receivers clear their rendered state and confirm against /auth/status.
// Signal content never drives an authorization decision.
const SignalLogout = "logout"

// Signal is the payload carried on the same-origin broadcast channel.
type Signal struct {
	Type      string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}
