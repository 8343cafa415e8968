package domain

import "context"

type userKey struct{}

// WithUser attaches the signed-in user to ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the signed-in user, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil && u.UID != ""
}

// RequireUser is UserFromContext turned into an error.
func RequireUser(ctx context.Context) (*User, error) {
	u, ok := UserFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return u, nil
}
