package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service ties together token issuance, revocation and per-request session
// resolution. All state lives in the store and the blacklist; the service
// itself keeps none across requests.
type Service struct {
	store     Store
	tokens    *TokenService
	blacklist Blacklist
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// NewService constructs the session service.
func NewService(store Store, tokens *TokenService, blacklist Blacklist) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	if blacklist == nil {
		return nil, errors.New("auth: blacklist is required")
	}
	return &Service{store: store, tokens: tokens, blacklist: blacklist}, nil
}

// Tokens exposes the underlying token service for TTL lookups.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Login verifies credentials and issues a fresh access/refresh pair. Every
// credential failure collapses to ErrUnauthorized.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, Session, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return TokenPair{}, Session{}, ErrUnauthorized
	}
	user, err := s.store.Users(ctx).FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Session{}, ErrUnauthorized
		}
		return TokenPair{}, Session{}, err
	}
	if !user.Active {
		return TokenPair{}, Session{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Session{}, ErrUnauthorized
	}

	claims := claimsForUser(user)
	access, accessExp, err := s.tokens.IssueAccess(claims)
	if err != nil {
		return TokenPair{}, Session{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(claims)
	if err != nil {
		return TokenPair{}, Session{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, s.sessionForUser(user), nil
}

// AuthenticateAccess resolves a session from an access token. Revocation is
// checked before signature validation so that a revoked-but-unexpired token
// is reported as ErrTokenRevoked, never silently treated as expired.
func (s *Service) AuthenticateAccess(ctx context.Context, token string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		return Session{}, ErrInvalidToken
	}
	revoked, err := s.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, ErrTokenRevoked
	}
	claims, err := s.tokens.Verify(token, KindAccess)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	return s.sessionFromClaims(ctx, claims)
}

// RefreshAccess mints a new access token from a valid, unrevoked refresh
// token. The refresh token itself is left untouched: its lifetime is never
// extended and no rotation state is stored, so repeating the call with the
// same refresh token simply rotates again.
func (s *Service) RefreshAccess(ctx context.Context, refreshToken string) (string, time.Time, Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", time.Time{}, Session{}, ErrInvalidToken
	}
	revoked, err := s.blacklist.IsRevoked(ctx, refreshToken)
	if err != nil {
		return "", time.Time{}, Session{}, err
	}
	if revoked {
		return "", time.Time{}, Session{}, ErrInvalidToken
	}
	claims, err := s.tokens.Verify(refreshToken, KindRefresh)
	if err != nil {
		return "", time.Time{}, Session{}, ErrInvalidToken
	}
	session, err := s.sessionFromClaims(ctx, claims)
	if err != nil {
		return "", time.Time{}, Session{}, err
	}
	access, expiresAt, err := s.tokens.IssueAccess(claims)
	if err != nil {
		return "", time.Time{}, Session{}, err
	}
	return access, expiresAt, session, nil
}

// Logout blacklists both tokens with their kind-maximum TTLs. The store does
// not know how much of each lifetime has elapsed, so the full lifetime is
// used; an entry shorter than the token's own validity would re-admit it.
// Empty tokens are skipped, and revoking twice is a no-op.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if err := s.blacklist.Revoke(ctx, accessToken, s.tokens.AccessTTL()); err != nil {
			return err
		}
	}
	if refreshToken != "" {
		if err := s.blacklist.Revoke(ctx, refreshToken, s.tokens.RefreshTTL()); err != nil {
			return err
		}
	}
	return nil
}

// Effective loads a user's merged permission view from the store.
func (s *Service) Effective(ctx context.Context, userID string) (Effective, error) {
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return Effective{}, err
	}
	return ResolveEffective(user), nil
}

// sessionFromClaims re-reads the user so that role changes and deactivations
// take effect on the next request, not at the token's next reissue.
func (s *Service) sessionFromClaims(ctx context.Context, claims Claims) (Session, error) {
	user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, err
	}
	if !user.Active {
		return Session{}, ErrInvalidToken
	}
	if strings.TrimSpace(user.TenantID) == "" {
		return Session{}, ErrTenantNotFound
	}
	return s.sessionForUser(user), nil
}

func (s *Service) sessionForUser(user *User) Session {
	return Session{
		UserID:            user.ID,
		Username:          user.Username,
		TenantID:          user.TenantID,
		AllProjectsAccess: user.AllProjectsAccess,
		Permissions:       ResolveEffective(user),
	}
}

func claimsForUser(user *User) Claims {
	claims := Claims{
		Username:          user.Username,
		TenantID:          user.TenantID,
		AllProjectsAccess: user.AllProjectsAccess,
	}
	if len(user.Roles) > 0 {
		claims.RoleLabel = user.Roles[0].Name
	}
	claims.Subject = user.ID
	return claims
}
