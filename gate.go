package auth

import (
	"context"

	"github.com/caffeine-addictt/greenbitessg-sub000/middleware/jwtware"
)

// GateOptions are the per-route requirements checked by Authenticate
type GateOptions struct {
	Kind         TokenKind
	AllowExpired bool
	RequireFresh bool
	RequireAdmin bool
}

// Authenticate resolves a bearer token to its user. Checks run in a fixed
// order and the first failure is returned.
func (s *Auther) Authenticate(ctx context.Context, token string, opts GateOptions) (*User, *TokenClaims, error) {
	if token == "" {
		return nil, nil, ErrNoToken
	}

	kind := opts.Kind
	if kind == "" {
		kind = TokenKindAccess
	}

	claims := s.codec.Verify(token, kind)
	if claims == nil {
		return nil, nil, ErrInvalidToken
	}

	revoked, err := s.repo.Revocations().IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("revocation lookup failed: %v", err)
		return nil, nil, ErrInternal
	}
	if revoked {
		return nil, nil, ErrInvalidToken
	}

	if !opts.AllowExpired && s.codec.IsExpired(claims) {
		return nil, nil, ErrTokenExpired
	}

	if opts.RequireFresh && !s.codec.IsFresh(claims, kind) {
		return nil, nil, ErrTokenNotFresh
	}

	user, err := s.repo.Users().GetByID(ctx, claims.Subject)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, ErrUserNotFound
		}
		s.logger.Error("gate user lookup failed: %v", err)
		return nil, nil, ErrInternal
	}

	if opts.RequireAdmin && !user.IsAdmin() {
		return nil, nil, ErrUnauthorized
	}

	return user, claims, nil
}

// Gate adapts the Auther to the jwtware middleware
func (s *Auther) Gate() jwtware.Authenticator {
	return gateAdapter{auther: s}
}

type gateAdapter struct {
	auther *Auther
}

func (g gateAdapter) Authenticate(ctx context.Context, token string, req jwtware.Requirements) (context.Context, any, error) {
	user, claims, err := g.auther.Authenticate(ctx, token, GateOptions{
		Kind:         TokenKind(req.Kind),
		AllowExpired: req.AllowExpired,
		RequireFresh: req.RequireFresh,
		RequireAdmin: req.RequireAdmin,
	})
	if err != nil {
		return ctx, nil, err
	}

	ctx = WithContext(ctx, user)
	ctx = WithClaimsContext(ctx, claims)
	return ctx, user, nil
}
