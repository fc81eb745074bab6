package backend

import (
	"net/http"
	"strings"
)

// Session carries the caller's credential to every backend call.
// It is passed explicitly rather than read from ambient state.
type Session struct {
	Token string
}

// SessionFromRequest extracts the bearer token from an inbound request.
func SessionFromRequest(r *http.Request) Session {
	if r == nil {
		return Session{}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return Session{}
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return Session{}
	}
	return Session{Token: strings.TrimSpace(parts[1])}
}

// Anonymous reports whether the session has no credential attached.
func (s Session) Anonymous() bool {
	return strings.TrimSpace(s.Token) == ""
}

func (s Session) apply(req *http.Request) {
	if s.Anonymous() {
		return
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(s.Token))
}
