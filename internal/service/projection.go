package service

import (
	"context"
	"fmt"

	"github.com/rongwang/savings-circles/internal/circle"
	"github.com/rongwang/savings-circles/internal/models"
)

// project renders c as seen by viewerID. All fields come from the one
// aggregate snapshot; only user names and emails are looked up.
func (s *DefaultService) project(ctx context.Context, c *circle.Circle, viewerID string) (*models.CircleResponse, error) {
	users, err := s.usersOf(ctx, c)
	if err != nil {
		return nil, err
	}

	info := c.Info()
	resp := &models.CircleResponse{
		ID:                    info.ID,
		Name:                  info.Name,
		Description:           info.Description,
		AmountPerMember:       info.AmountPerMember,
		ProposedAmount:        info.ProposedAmount,
		CreatorID:             info.CreatorID,
		IsAdmin:               c.IsAdmin(viewerID),
		NeedsAmountApproval:   c.NeedsAmountApproval(viewerID),
		CurrentPeriod:         c.Period(),
		ContributedThisPeriod: c.HasContributed(viewerID),
		CreatedAt:             info.CreatedAt,
	}

	members := c.Members()
	resp.Members = make([]models.MemberResponse, 0, len(members))
	for _, m := range members {
		resp.Members = append(resp.Members, memberResponse(m, users[m.UserID]))
	}

	if resp.IsAdmin {
		resp.PendingApprovals = c.PendingApprovals()
	}

	if p := c.Proposal(); p != nil {
		approved, required := p.Progress()
		resp.ApprovalProgress = &models.ApprovalProgress{Approved: approved, Required: required}
		for _, a := range p.Approvals() {
			resp.AmountApprovals = append(resp.AmountApprovals, models.ApprovalStatus{
				UserID:   a.UserID,
				UserName: users[a.UserID].Name,
				Approved: a.Approved,
			})
		}
	}

	return resp, nil
}

func (s *DefaultService) usersOf(ctx context.Context, c *circle.Circle) (map[string]models.User, error) {
	members := c.Members()
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return s.usersByID(ctx, ids)
}

func (s *DefaultService) usersByID(ctx context.Context, ids []string) (map[string]models.User, error) {
	users, err := s.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error getting users: %w", err)
	}

	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func memberResponse(m models.CircleMember, u models.User) models.MemberResponse {
	return models.MemberResponse{
		ID:     m.UserID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   m.Role,
		Status: m.Status,
	}
}

func contributionResponse(c models.Contribution, u models.User) models.ContributionResponse {
	month, _ := circle.PeriodStart(c.Period)
	return models.ContributionResponse{
		ID:         c.ID,
		UserID:     c.UserID,
		UserName:   u.Name,
		UserEmail:  u.Email,
		Amount:     c.Amount,
		Period:     c.Period,
		Month:      month,
		RecordedAt: c.RecordedAt,
	}
}
