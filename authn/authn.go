// Package authn provides the public "Authenticate" handler: a
// resource bundling a session store and a token codec configuration,
// exposed as a plain handler function so it can be registered with a
// Builder like any other.
package authn

import (
	"github.com/martinschaer/nitram"
	"github.com/martinschaer/nitram/internal/logger"
	"github.com/martinschaer/nitram/nice"
	"github.com/martinschaer/nitram/session"
	"github.com/martinschaer/nitram/token"
)

// Resource wires the authentication handshake to a specific store and
// token strategy. It implements nitram.Resource only so its own
// Authenticate method can close over the state a handler function
// would otherwise have no way to reach; it is not itself injected into
// other handlers.
type Resource struct {
	store      *session.Store
	strategy   token.Strategy
	signingKey []byte
}

// New builds a Resource backed by store, verifying tokens with
// strategy (and signingKey, when the strategy requires one).
func New(store *session.Store, strategy token.Strategy, signingKey []byte) *Resource {
	return &Resource{store: store, strategy: strategy, signingKey: signingKey}
}

func (*Resource) NitramResource() {}

// Params is the payload of an Authenticate call: the token string a
// client obtained out-of-band (an emailed link, a prior login
// response) and now presents to upgrade its connection.
type Params struct {
	Token string `json:"token"`
}

// Authenticate parses params.Token with the configured strategy and,
// on success, promotes the calling connection's session to
// Authenticated. It always returns (true, nil) on success; a bad token
// surfaces as a MethodError so the engine downgrades it to a wire
// "(~ not authorized ~)" response instead of granting the connection a
// half-finished session.
func (r *Resource) Authenticate(anon nitram.AnonymousSession, params Params) (bool, error) {
	parsed, err := token.Parse(params.Token, r.strategy, r.signingKey)
	if err != nil {
		logger.Auth().Debug().Err(err).Msg("authenticate: token rejected")
		return false, nice.ErrNotAuthorized
	}

	r.store.Authenticate(anon.ConnID, session.AuthPayload{
		UserID:      parsed.UserID,
		DBSessionID: parsed.DBSessionID,
		Strategy:    r.strategy.String(),
		Token:       params.Token,
		ExpiresAt:   parsed.ExpiresAt,
	})
	logger.Auth().Debug().Str("conn", anon.ConnID.String()).Str("user", parsed.UserID).Msg("authenticated")
	return true, nil
}
