package user

// Identity is the authenticated user attached to a request by the auth collaborator.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// IsZero reports whether no user has been resolved.
func (i Identity) IsZero() bool {
	return i.ID == 0
}
