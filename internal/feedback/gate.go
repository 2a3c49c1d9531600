package feedback

import (
	"crypto/subtle"
	"net/http"

	"github.com/nadzzz/pathlight/internal/apierror"
)

// Gate guards feedback reads with a single shared secret. There is no
// rotation and no per-client identity.
type Gate struct {
	token string
}

// NewGate creates a gate. An empty token leaves reads open.
func NewGate(token string) Gate {
	return Gate{token: token}
}

// Required reports whether a token is configured.
func (g Gate) Required() bool { return g.token != "" }

// Authorize checks provided against the configured token.
func (g Gate) Authorize(provided string) error {
	if g.token == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(g.token)) != 1 {
		return apierror.New(apierror.KindAuth, http.StatusUnauthorized, "unauthorized")
	}
	return nil
}
