package models

import (
	"time"
)

// Role is a member's role within a circle
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// MemberStatus is the admission state of a circle membership
type MemberStatus string

const (
	StatusPending MemberStatus = "pending"
	StatusActive  MemberStatus = "active"
)

// User represents a user in the system
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Circle represents a savings group. ProposedAmount is 0 when no amount
// change is being voted on.
type Circle struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description"`
	CreatorID       string    `db:"creator_id" json:"creator_id"`
	AmountPerMember int64     `db:"amount_per_member" json:"amount_per_member"`
	ProposedAmount  int64     `db:"proposed_amount" json:"proposed_amount"`
	ProposerID      string    `db:"proposer_id" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CircleMember represents the relationship between users and circles.
// ID is a store-assigned sequence used to keep insertion order.
type CircleMember struct {
	ID        int64        `db:"id" json:"-"`
	CircleID  string       `db:"circle_id" json:"circle_id"`
	UserID    string       `db:"user_id" json:"user_id"`
	Role      Role         `db:"role" json:"role"`
	Status    MemberStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// AmountApproval is one required approver's vote on a live amount proposal
type AmountApproval struct {
	CircleID string `db:"circle_id" json:"circle_id"`
	UserID   string `db:"user_id" json:"user_id"`
	Approved bool   `db:"approved" json:"approved"`
	Position int    `db:"position" json:"-"`
}

// Contribution is an immutable ledger entry. Period is the UTC billing month
// formatted as YYYY-MM.
type Contribution struct {
	ID         string    `db:"id" json:"id"`
	CircleID   string    `db:"circle_id" json:"circle_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Amount     int64     `db:"amount" json:"amount"`
	Period     string    `db:"period" json:"period"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}
