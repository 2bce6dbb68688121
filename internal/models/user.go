package models

import "time"

// User represents an application user. Local accounts carry a password hash;
// accounts provisioned from OIDC claims carry a subject instead.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Sub          string    `bson:"sub,omitempty" json:"sub,omitempty"` // OIDC subject
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	Department   string    `bson:"department,omitempty" json:"department,omitempty"`
	PasswordHash string    `bson:"passwordHash,omitempty" json:"-"`
	IsVerified   bool      `bson:"isVerified" json:"isVerified"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// UserRef is the display-friendly projection of a user referenced by documents.
type UserRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
}

// Ref projects u to a UserRef.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Department: u.Department}
}
