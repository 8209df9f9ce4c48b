package model

import "time"

// User is the minimal authenticated-user record kept next to the session
// token. Only these four fields are ever persisted on the client; the
// password and any server-side metadata stay on the server.
//
// Fields:
//  ID     – stable identifier; derived from the email when the server
//           does not supply one, so bookings scoped by it stay reachable
//           across logins.
//  Name   – display name.
//  Email  – login email.
//  Avatar – optional avatar URL.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// Account mirrors a row of the server-side `users` table.
type Account struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Email        string    // users.email
	Avatar       string    // users.avatar
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
