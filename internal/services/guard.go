package services

import "github.com/quillpost/apiserver/types"

// RequirePrincipal turns an optional principal into an authenticated one.
func RequirePrincipal(p *types.Principal) (types.Principal, error) {
	if p == nil || p.UserID == "" {
		return types.Principal{}, ErrUnauthenticated
	}
	return *p, nil
}

// RequireOwnership allows the action only when the principal created the
// resource. creatorUserID must come from the current stored record.
func RequireOwnership(p types.Principal, creatorUserID string) error {
	if p.UserID == "" || p.UserID != creatorUserID {
		return ErrForbidden
	}
	return nil
}
