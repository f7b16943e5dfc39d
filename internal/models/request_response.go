package models

import "time"

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateCircleRequest struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	AmountPerMember int64  `json:"amount_per_member"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   Role   `json:"role"`
}

type ProposeAmountRequest struct {
	NewAmount *int64 `json:"new_amount" binding:"required"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

// MemberResponse represents a circle member with status
type MemberResponse struct {
	ID     string       `json:"id"`
	Email  string       `json:"email"`
	Name   string       `json:"name"`
	Role   Role         `json:"role"`
	Status MemberStatus `json:"status"`
}

// ApprovalStatus represents a required approver's vote on an amount change
type ApprovalStatus struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Approved bool   `json:"approved"`
}

// ApprovalProgress counts approvals against the frozen approver set
type ApprovalProgress struct {
	Approved int `json:"approved"`
	Required int `json:"required"`
}

// CircleResponse is the externally visible view of a circle for one viewer
type CircleResponse struct {
	ID                    string            `json:"id"`
	Name                  string            `json:"name"`
	Description           string            `json:"description"`
	AmountPerMember       int64             `json:"amount_per_member"`
	ProposedAmount        int64             `json:"proposed_amount"`
	CreatorID             string            `json:"creator_id"`
	IsAdmin               bool              `json:"is_admin"`
	Members               []MemberResponse  `json:"members"`
	PendingApprovals      []string          `json:"pending_approvals"`
	NeedsAmountApproval   bool              `json:"needs_amount_approval"`
	AmountApprovals       []ApprovalStatus  `json:"amount_approvals,omitempty"`
	ApprovalProgress      *ApprovalProgress `json:"approval_progress,omitempty"`
	CurrentPeriod         string            `json:"current_period"`
	ContributedThisPeriod bool              `json:"contributed_this_period"`
	CreatedAt             time.Time         `json:"created_at"`
}

// AmountApprovalResponse reports the effect of one amount approval
type AmountApprovalResponse struct {
	Status          string           `json:"status"`
	Committed       bool             `json:"committed"`
	AmountPerMember int64            `json:"amount_per_member"`
	ProposedAmount  int64            `json:"proposed_amount"`
	Progress        ApprovalProgress `json:"approval_progress"`
}

// ContributionResponse represents a ledger entry with its contributor
type ContributionResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	UserEmail  string    `json:"user_email"`
	Amount     int64     `json:"amount"`
	Period     string    `json:"period"`
	Month      time.Time `json:"month"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ContributionSummary aggregates a circle's history
type ContributionSummary struct {
	TotalSaved   int64  `json:"total_saved"`
	PeriodTotal  int64  `json:"period_total"`
	Period       string `json:"period"`
	Contributors int    `json:"contributors"`
	Entries      int    `json:"entries"`
}

type ContributionHistoryResponse struct {
	Status        string                 `json:"status"`
	CircleID      string                 `json:"circleId"`
	Contributions []ContributionResponse `json:"contributions"`
	Summary       ContributionSummary    `json:"summary"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
