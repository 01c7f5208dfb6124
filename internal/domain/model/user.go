package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"mpesa-subscription-billing/internal/domain"
)

// User is the opaque payer identity referenced by payments and
// subscriptions. No authentication mechanics live here.
type User struct {
	ID        string
	Email     string
	FullName  string
	IsStaff   bool
	CreatedAt time.Time
}

func NewUser(id, email, fullName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &User{
		ID:        id,
		Email:     email,
		FullName:  fullName,
		CreatedAt: time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
