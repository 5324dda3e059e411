package domain

type UserID int64

// Identity is the authenticated user's context, supplied externally.
// Token is the opaque credential presented to every backend call.
type Identity struct {
	UserID   UserID
	Username string
	Token    string
}
