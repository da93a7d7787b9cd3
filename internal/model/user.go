package model

import "strings"

// User is the minimal profile returned by the login endpoint and kept
// for the lifetime of the session.
type User struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"nome" db:"name"`
	Email    string `json:"email" db:"email"`
	PhotoURL string `json:"foto,omitempty" db:"photo_url"`

	// Gender is nil when the user did not set it.
	Gender *bool `json:"genero,omitempty" db:"gender"`

	// Kind is the account type (e.g., driver or passenger).
	Kind string `json:"tipoUsuario,omitempty" db:"kind"`
}

// FirstName returns the first word of the user's name, or "User" when
// the name is empty.
func (u User) FirstName() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return "User"
	}
	return fields[0]
}

// LoginRequest is the body of POST /usuario/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

// LoginResponse is the body returned by a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"usuario"`
}
