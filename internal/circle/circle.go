// Package circle holds the savings circle aggregate: membership admission,
// unanimous amount-change consensus and the per-period contribution ledger.
//
// A *Circle is not safe for concurrent use. Callers load it, run exactly one
// command and save it while holding the circle's exclusive section.
package circle

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rongwang/savings-circles/internal/models"
)

// Circle is the aggregate root for one savings circle.
type Circle struct {
	info     models.Circle
	members  []models.CircleMember
	proposal *Proposal

	// period is the billing period the contribution snapshot was loaded for
	period      string
	contributed map[string]bool
	recorded    []models.Contribution
}

// New creates a circle whose creator is its single active admin.
func New(name, description, creatorID string, amount int64, now time.Time) (*Circle, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	now = now.UTC()
	info := models.Circle{
		ID:              uuid.New().String(),
		Name:            name,
		Description:     description,
		CreatorID:       creatorID,
		AmountPerMember: amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	creator := models.CircleMember{
		CircleID:  info.ID,
		UserID:    creatorID,
		Role:      models.RoleAdmin,
		Status:    models.StatusActive,
		CreatedAt: now,
	}

	return &Circle{
		info:        info,
		members:     []models.CircleMember{creator},
		period:      PeriodOf(now),
		contributed: map[string]bool{},
	}, nil
}

// Restore rebuilds a circle from stored state. members must be in insertion
// order; contributions are the circle's entries for period.
func Restore(
	info models.Circle,
	members []models.CircleMember,
	approvals []models.AmountApproval,
	period string,
	contributions []models.Contribution,
) *Circle {
	c := &Circle{
		info:        info,
		members:     append([]models.CircleMember(nil), members...),
		period:      period,
		contributed: make(map[string]bool, len(contributions)),
	}

	if info.ProposedAmount > 0 {
		ordered := append([]models.AmountApproval(nil), approvals...)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })
		c.proposal = &Proposal{
			Amount:     info.ProposedAmount,
			ProposerID: info.ProposerID,
			approvals:  ordered,
		}
	}

	for _, contribution := range contributions {
		if contribution.Period == period {
			c.contributed[contribution.UserID] = true
		}
	}

	return c
}

// Info returns the circle's row-level fields.
func (c *Circle) Info() models.Circle {
	return c.info
}

// ID returns the circle id.
func (c *Circle) ID() string {
	return c.info.ID
}

// Members returns every membership in insertion order.
func (c *Circle) Members() []models.CircleMember {
	return append([]models.CircleMember(nil), c.members...)
}

// Proposal returns the live amount proposal, or nil when none exists.
func (c *Circle) Proposal() *Proposal {
	return c.proposal
}

// Recorded returns contributions created since the circle was loaded.
func (c *Circle) Recorded() []models.Contribution {
	return append([]models.Contribution(nil), c.recorded...)
}

// Period returns the billing period the circle's ledger snapshot covers.
func (c *Circle) Period() string {
	return c.period
}

// Member returns the membership for userID, if any.
func (c *Circle) Member(userID string) (models.CircleMember, bool) {
	if i := c.memberIndex(userID); i >= 0 {
		return c.members[i], true
	}
	return models.CircleMember{}, false
}

// IsMember reports whether userID has any membership on the circle.
func (c *Circle) IsMember(userID string) bool {
	return c.memberIndex(userID) >= 0
}

// IsActive reports whether userID is an active member.
func (c *Circle) IsActive(userID string) bool {
	m, ok := c.Member(userID)
	return ok && m.Status == models.StatusActive
}

// IsAdmin reports whether userID is the circle's admin.
func (c *Circle) IsAdmin(userID string) bool {
	m, ok := c.Member(userID)
	return ok && userID == c.info.CreatorID && m.Role == models.RoleAdmin && m.Status == models.StatusActive
}

// PendingApprovals lists the ids of pending members in insertion order.
func (c *Circle) PendingApprovals() []string {
	pending := []string{}
	for _, m := range c.members {
		if m.Status == models.StatusPending {
			pending = append(pending, m.UserID)
		}
	}
	return pending
}

// ApprovalProgress reports approvals against the frozen approver set. Both
// values are zero when no proposal is live.
func (c *Circle) ApprovalProgress() (approved, required int) {
	if c.proposal == nil {
		return 0, 0
	}
	return c.proposal.Progress()
}

// NeedsAmountApproval reports whether userID still owes a vote on the live
// proposal.
func (c *Circle) NeedsAmountApproval(userID string) bool {
	if c.proposal == nil {
		return false
	}
	approved, required := c.proposal.vote(userID)
	return required && !approved
}

// HasContributed reports whether userID has a contribution in the loaded period.
func (c *Circle) HasContributed(userID string) bool {
	return c.contributed[userID]
}

// Invite adds targetID as a pending member. target is nil when no such user
// exists. An empty role means member.
func (c *Circle) Invite(actorID, targetID string, target *models.User, role models.Role, now time.Time) error {
	if !c.IsAdmin(actorID) {
		return ErrNotAuthorized
	}
	if c.IsMember(targetID) {
		return ErrAlreadyMember
	}
	if target == nil {
		return ErrUnknownUser
	}
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember {
		return ErrInvalidRole
	}

	c.members = append(c.members, models.CircleMember{
		CircleID:  c.info.ID,
		UserID:    target.ID,
		Role:      role,
		Status:    models.StatusPending,
		CreatedAt: now.UTC(),
	})
	c.touch(now)
	return nil
}

// ApproveMember activates a pending member. A member activated while a
// proposal is live does not join its approver set.
func (c *Circle) ApproveMember(actorID, targetID string, now time.Time) error {
	if !c.IsAdmin(actorID) {
		return ErrNotAuthorized
	}

	i := c.memberIndex(targetID)
	if i < 0 {
		return ErrUnknownUser
	}
	if c.members[i].Status != models.StatusPending {
		return ErrInvalidState
	}

	c.members[i].Status = models.StatusActive
	c.touch(now)
	return nil
}

// Propose opens a vote on a new per-member amount. Every currently active
// member becomes a required approver.
func (c *Circle) Propose(actorID string, amount int64, now time.Time) error {
	if !c.IsAdmin(actorID) {
		return ErrNotAuthorized
	}
	if amount <= 0 || amount == c.info.AmountPerMember {
		return ErrInvalidAmount
	}
	if c.proposal != nil {
		return ErrAlreadyProposed
	}

	var approvals []models.AmountApproval
	for _, m := range c.members {
		if m.Status != models.StatusActive {
			continue
		}
		approvals = append(approvals, models.AmountApproval{
			CircleID: c.info.ID,
			UserID:   m.UserID,
			Position: len(approvals),
		})
	}

	c.proposal = &Proposal{Amount: amount, ProposerID: actorID, approvals: approvals}
	c.info.ProposedAmount = amount
	c.info.ProposerID = actorID
	c.touch(now)
	return nil
}

// ApproveAmount records actorID's approval of the live proposal. When it is
// the last missing approval the new amount is committed and the proposal is
// cleared before returning; committed reports whether that happened.
func (c *Circle) ApproveAmount(actorID string, now time.Time) (committed bool, err error) {
	if !c.IsMember(actorID) {
		return false, ErrNotAuthorized
	}
	if c.proposal == nil {
		return false, ErrNoProposal
	}

	i := c.proposal.index(actorID)
	if i < 0 || !c.IsActive(actorID) {
		return false, ErrNotAuthorized
	}
	if c.proposal.approvals[i].Approved {
		return false, ErrAlreadyApproved
	}

	c.proposal.approvals[i].Approved = true
	c.touch(now)

	if approved, required := c.proposal.Progress(); approved < required {
		return false, nil
	}

	c.info.AmountPerMember = c.proposal.Amount
	c.info.ProposedAmount = 0
	c.info.ProposerID = ""
	c.proposal = nil
	return true, nil
}

// RecordContribution books actorID's contribution for the period of now at
// the current committed amount.
func (c *Circle) RecordContribution(actorID string, now time.Time) (models.Contribution, error) {
	if !c.IsActive(actorID) {
		return models.Contribution{}, ErrNotAuthorized
	}
	if c.proposal != nil {
		return models.Contribution{}, ErrProposalPending
	}

	period := PeriodOf(now)
	if period != c.period {
		return models.Contribution{}, fmt.Errorf("%w: ledger loaded for %s, not %s", ErrInvalidState, c.period, period)
	}
	if c.contributed[actorID] {
		return models.Contribution{}, ErrDuplicatePeriod
	}

	contribution := models.Contribution{
		ID:         uuid.New().String(),
		CircleID:   c.info.ID,
		UserID:     actorID,
		Amount:     c.info.AmountPerMember,
		Period:     period,
		RecordedAt: now.UTC(),
	}
	c.contributed[actorID] = true
	c.recorded = append(c.recorded, contribution)
	return contribution, nil
}

func (c *Circle) memberIndex(userID string) int {
	for i, m := range c.members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

func (c *Circle) touch(now time.Time) {
	c.info.UpdatedAt = now.UTC()
}
