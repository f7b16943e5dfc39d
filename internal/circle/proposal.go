package circle

import "github.com/rongwang/savings-circles/internal/models"

// Proposal is a live amount change. Its approver set is fixed when the
// proposal is opened.
type Proposal struct {
	Amount     int64
	ProposerID string
	approvals  []models.AmountApproval
}

// Approvals returns the required approvers' votes in enrolment order.
func (p *Proposal) Approvals() []models.AmountApproval {
	return append([]models.AmountApproval(nil), p.approvals...)
}

// Progress returns how many required approvers have approved.
func (p *Proposal) Progress() (approved, required int) {
	for _, a := range p.approvals {
		if a.Approved {
			approved++
		}
	}
	return approved, len(p.approvals)
}

// IsRequired reports whether userID is in the approver set.
func (p *Proposal) IsRequired(userID string) bool {
	return p.index(userID) >= 0
}

func (p *Proposal) vote(userID string) (approved, required bool) {
	i := p.index(userID)
	if i < 0 {
		return false, false
	}
	return p.approvals[i].Approved, true
}

func (p *Proposal) index(userID string) int {
	for i, a := range p.approvals {
		if a.UserID == userID {
			return i
		}
	}
	return -1
}
