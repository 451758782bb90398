package models

// User is the minimal identity returned by the external identity provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// UserProfile is the provider-owned profile record. The identity context
// holds a read-only cached copy whose lifetime matches the current session.
type UserProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	FullName string `json:"fullName"`
}
