package domain

import "strings"

// User is the identity supplied by the identity provider.
// Nothing beyond these claims is stored.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Handle is the short label shown for a signed-in user: the local part of the
// email, or the uid when there is no email.
func (u *User) Handle() string {
	if u == nil {
		return ""
	}
	if u.Email == "" {
		return u.UID
	}
	if i := strings.IndexByte(u.Email, '@'); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}
