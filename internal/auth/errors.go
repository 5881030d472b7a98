package auth

import "errors"

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrUnauthorized  = errors.New("auth: unauthorized")

	// ErrInvalidToken covers every expected token failure: bad signature,
	// malformed input, expiry, wrong kind. Callers must not distinguish them.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenRevoked is an internal state only; at the HTTP boundary it
	// surfaces exactly like ErrInvalidToken (401).
	ErrTokenRevoked = errors.New("auth: token revoked")

	// ErrTenantNotFound means the user exists but has no resolvable tenant.
	ErrTenantNotFound = errors.New("auth: tenant not found")

	// ErrSystemRole is returned when a mutation targets an immutable system role.
	ErrSystemRole = errors.New("auth: system role is immutable")

	// ErrInvalidPermissionKey is returned when a key is not part of the catalog.
	ErrInvalidPermissionKey = errors.New("auth: invalid permission key")
)
