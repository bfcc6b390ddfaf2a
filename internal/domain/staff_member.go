package domain

import "time"

// StaffMember models a complaint handler or administrator.
type StaffMember struct {
	ID         string
	Name       string
	Email      string
	Role       Role
	Department string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
