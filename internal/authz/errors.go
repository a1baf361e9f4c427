package authz

import "errors"

var (
	// ErrNoRole indicates the target user holds no known role, so there is
	// no template to seed from.
	ErrNoRole = errors.New("authz: user has no role assigned")
	// ErrInvalidKey indicates a permission key absent from the catalogue.
	ErrInvalidKey = errors.New("authz: invalid permission key")
	// ErrUnauthorized indicates the actor lacks scope or capability for the
	// requested change.
	ErrUnauthorized = errors.New("authz: actor not authorized")
	// ErrConcurrentModification indicates the stored set changed since the
	// snapshot was taken.
	ErrConcurrentModification = errors.New("authz: permission set modified concurrently")
	// ErrAuditFailed indicates the audit write failed; the enclosing
	// transaction is rolled back.
	ErrAuditFailed = errors.New("authz: audit write failed")
)
