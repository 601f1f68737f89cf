// Package model defines the data structures used throughout the application.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role is the coarse permission level of an account.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ParseRole accepts the stored role strings. "user" was written by earlier
// clients for ordinary accounts and reads as RoleMember.
func ParseRole(s string) (Role, error) {
	switch s {
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleMember), "user", "":
		return RoleMember, nil
	}
	return "", fmt.Errorf("model: unknown role %q", s)
}

// User is an identity plus its reputation balance.
//
// Username is the identity key and never changes once created.
//
// The point balance is deliberately unexported. It can be read through
// Points() and only ever grows through Credit, which the report workflow
// calls when a report is verified. Storage backends move balances in and out
// through UserRecord, never through a setter.
type User struct {
	Username     string
	Role         Role
	MemberSince  time.Time
	ProfilePic   *string // data URL or external link; nil when never set
	PasswordHash string

	points int
}

// NewUser builds a freshly registered account with a zero balance.
func NewUser(username string, role Role, passwordHash string, memberSince time.Time) *User {
	return &User{
		Username:     username,
		Role:         role,
		MemberSince:  memberSince,
		PasswordHash: passwordHash,
	}
}

func (u *User) Points() int {
	return u.points
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Credit adds delta points to the balance. Balances never decrease, so
// non-positive deltas are rejected.
func (u *User) Credit(delta int) error {
	if delta <= 0 {
		return fmt.Errorf("model: credit must be positive, got %d", delta)
	}
	u.points += delta
	return nil
}

// UserRecord is the flat persisted shape of a User.
type UserRecord struct {
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	Points       int       `json:"points"`
	MemberSince  time.Time `json:"memberSince"`
	ProfilePic   *string   `json:"profilePic,omitempty"`
	PasswordHash string    `json:"passwordHash"`
}

// Record flattens u for persistence.
func (u *User) Record() UserRecord {
	return UserRecord{
		Username:     u.Username,
		Role:         string(u.Role),
		Points:       u.points,
		MemberSince:  u.MemberSince,
		ProfilePic:   u.ProfilePic,
		PasswordHash: u.PasswordHash,
	}
}

// RestoreUser rebuilds a User from its persisted shape.
func RestoreUser(rec UserRecord) (*User, error) {
	role, err := ParseRole(rec.Role)
	if err != nil {
		return nil, err
	}
	if rec.Points < 0 {
		return nil, fmt.Errorf("model: user %s has negative balance %d", rec.Username, rec.Points)
	}
	return &User{
		Username:     rec.Username,
		Role:         role,
		MemberSince:  rec.MemberSince,
		ProfilePic:   rec.ProfilePic,
		PasswordHash: rec.PasswordHash,
		points:       rec.Points,
	}, nil
}

func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Record())
}

func (u *User) UnmarshalJSON(data []byte) error {
	var rec UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	restored, err := RestoreUser(rec)
	if err != nil {
		return err
	}
	*u = *restored
	return nil
}
