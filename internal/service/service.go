package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rongwang/savings-circles/internal/circle"
	"github.com/rongwang/savings-circles/internal/metrics"
	"github.com/rongwang/savings-circles/internal/models"
	"github.com/rongwang/savings-circles/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)

	// Circles
	CreateCircle(ctx context.Context, userID string, req models.CreateCircleRequest) (*models.CircleResponse, error)
	ListCircles(ctx context.Context, userID string) ([]models.CircleResponse, error)
	GetCircle(ctx context.Context, userID, circleID string) (*models.CircleResponse, error)

	// Membership
	InviteMember(ctx context.Context, userID, circleID string, req models.AddMemberRequest) (*models.MemberResponse, error)
	ApproveMember(ctx context.Context, userID, circleID, targetID string) (*models.MemberResponse, error)

	// Amount consensus
	ProposeAmount(ctx context.Context, userID, circleID string, amount int64) (*models.CircleResponse, error)
	ApproveAmount(ctx context.Context, userID, circleID string) (*models.AmountApprovalResponse, error)

	// Contributions
	RecordContribution(ctx context.Context, userID, circleID string) (*models.ContributionResponse, error)
	History(ctx context.Context, userID, circleID string) (iter.Seq[models.Contribution], error)
	GetContributions(ctx context.Context, userID, circleID string) (*models.ContributionHistoryResponse, error)
}

// Options configures a DefaultService. Zero values get defaults.
type Options struct {
	JWTSecret              string
	TokenTTL               time.Duration
	DefaultAmountPerMember int64
	AutoApproveInvites     bool
	Logger                 *logrus.Logger
	Metrics                *metrics.Metrics
	Clock                  func() time.Time
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	jwtSecret     []byte
	tokenDuration time.Duration
	defaultAmount int64
	autoApprove   bool
	logger        *logrus.Logger
	metrics       *metrics.Metrics
	clock         func() time.Time
	locks         *circleLocks
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, opts Options) *DefaultService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetOutput(io.Discard)
	}

	return &DefaultService{
		repo:          repo,
		jwtSecret:     []byte(opts.JWTSecret),
		tokenDuration: opts.TokenTTL,
		defaultAmount: opts.DefaultAmountPerMember,
		autoApprove:   opts.AutoApproveInvites,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		clock:         opts.Clock,
		locks:         newCircleLocks(),
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("user signed up")

	return &models.AuthResponse{
		Status: "success",
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// Circle operations
func (s *DefaultService) CreateCircle(
	ctx context.Context,
	userID string,
	req models.CreateCircleRequest,
) (*models.CircleResponse, error) {
	creator, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if creator == nil {
		return nil, circle.ErrUnknownUser
	}

	amount := req.AmountPerMember
	if amount == 0 {
		amount = s.defaultAmount
	}

	c, err := circle.New(req.Name, req.Description, userID, amount, s.clock())
	if err != nil {
		s.metrics.ObserveCommand("create_circle", metrics.OutcomeRejected)
		return nil, err
	}

	if err := s.repo.CreateCircle(ctx, c); err != nil {
		s.metrics.ObserveCommand("create_circle", metrics.OutcomeError)
		return nil, fmt.Errorf("error creating circle: %w", err)
	}
	s.metrics.ObserveCommand("create_circle", metrics.OutcomeOK)

	s.logger.WithFields(logrus.Fields{
		"circle_id": c.ID(),
		"user_id":   userID,
		"amount":    amount,
	}).Info("circle created")

	return s.project(ctx, c, userID)
}

func (s *DefaultService) ListCircles(ctx context.Context, userID string) ([]models.CircleResponse, error) {
	ids, err := s.repo.GetUserCircleIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user circles: %w", err)
	}

	period := circle.PeriodOf(s.clock())
	circles := make([]models.CircleResponse, 0, len(ids))
	for _, id := range ids {
		c, err := s.repo.LoadCircle(ctx, id, period)
		if err != nil {
			return nil, fmt.Errorf("error loading circle: %w", err)
		}
		if c == nil || !c.IsMember(userID) {
			continue
		}

		resp, err := s.project(ctx, c, userID)
		if err != nil {
			return nil, err
		}
		circles = append(circles, *resp)
	}

	return circles, nil
}

func (s *DefaultService) GetCircle(ctx context.Context, userID, circleID string) (*models.CircleResponse, error) {
	c, err := s.snapshot(ctx, userID, circleID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, c, userID)
}

// Membership operations
func (s *DefaultService) InviteMember(
	ctx context.Context,
	userID string,
	circleID string,
	req models.AddMemberRequest,
) (*models.MemberResponse, error) {
	target, err := s.repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	c, err := s.command(ctx, "invite_member", circleID, func(c *circle.Circle, now time.Time) error {
		if err := c.Invite(userID, req.UserID, target, req.Role, now); err != nil {
			return err
		}
		if s.autoApprove {
			return c.ApproveMember(userID, req.UserID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m, _ := c.Member(req.UserID)
	resp := memberResponse(m, *target)
	return &resp, nil
}

func (s *DefaultService) ApproveMember(
	ctx context.Context,
	userID string,
	circleID string,
	targetID string,
) (*models.MemberResponse, error) {
	c, err := s.command(ctx, "approve_member", circleID, func(c *circle.Circle, now time.Time) error {
		return c.ApproveMember(userID, targetID, now)
	})
	if err != nil {
		return nil, err
	}

	target, err := s.repo.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if target == nil {
		target = &models.User{ID: targetID}
	}

	m, _ := c.Member(targetID)
	resp := memberResponse(m, *target)
	return &resp, nil
}

// Amount consensus operations
func (s *DefaultService) ProposeAmount(
	ctx context.Context,
	userID string,
	circleID string,
	amount int64,
) (*models.CircleResponse, error) {
	c, err := s.command(ctx, "propose_amount", circleID, func(c *circle.Circle, now time.Time) error {
		return c.Propose(userID, amount, now)
	})
	if err != nil {
		return nil, err
	}

	_, required := c.ApprovalProgress()
	s.logger.WithFields(logrus.Fields{
		"circle_id": circleID,
		"user_id":   userID,
		"amount":    amount,
		"approvers": required,
	}).Info("amount change proposed")

	return s.project(ctx, c, userID)
}

func (s *DefaultService) ApproveAmount(
	ctx context.Context,
	userID string,
	circleID string,
) (*models.AmountApprovalResponse, error) {
	var committed bool
	var progress models.ApprovalProgress

	c, err := s.command(ctx, "approve_amount", circleID, func(c *circle.Circle, now time.Time) error {
		_, required := c.ApprovalProgress()

		var err error
		committed, err = c.ApproveAmount(userID, now)
		if err != nil {
			return err
		}

		// a committed proposal is cleared, so its final tally is every vote
		progress = models.ApprovalProgress{Approved: required, Required: required}
		if !committed {
			progress.Approved, progress.Required = c.ApprovalProgress()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	info := c.Info()
	if committed {
		s.metrics.ObserveCommit()
		s.logger.WithFields(logrus.Fields{
			"circle_id": circleID,
			"amount":    info.AmountPerMember,
		}).Info("amount change committed")
	}

	resp := &models.AmountApprovalResponse{
		Status:          "success",
		Committed:       committed,
		AmountPerMember: info.AmountPerMember,
		ProposedAmount:  info.ProposedAmount,
		Progress:        progress,
	}

	return resp, nil
}

// Contribution operations
func (s *DefaultService) RecordContribution(
	ctx context.Context,
	userID string,
	circleID string,
) (*models.ContributionResponse, error) {
	var recorded models.Contribution

	_, err := s.command(ctx, "record_contribution", circleID, func(c *circle.Circle, now time.Time) error {
		var err error
		recorded, err = c.RecordContribution(userID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		user = &models.User{ID: userID}
	}

	resp := contributionResponse(recorded, *user)
	return &resp, nil
}

// History returns the circle's contributions, newest first. Each call reads
// a fresh snapshot; the returned sequence can be ranged over repeatedly.
func (s *DefaultService) History(ctx context.Context, userID, circleID string) (iter.Seq[models.Contribution], error) {
	if _, err := s.snapshot(ctx, userID, circleID); err != nil {
		return nil, err
	}

	contributions, err := s.repo.ListContributions(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("error listing contributions: %w", err)
	}

	return slices.Values(contributions), nil
}

func (s *DefaultService) GetContributions(
	ctx context.Context,
	userID string,
	circleID string,
) (*models.ContributionHistoryResponse, error) {
	history, err := s.History(ctx, userID, circleID)
	if err != nil {
		return nil, err
	}

	var ids []string
	for c := range history {
		if !slices.Contains(ids, c.UserID) {
			ids = append(ids, c.UserID)
		}
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := []models.ContributionResponse{}
	for c := range history {
		entries = append(entries, contributionResponse(c, users[c.UserID]))
	}

	period := circle.PeriodOf(s.clock())
	summary := circle.Summarize(history, period)

	return &models.ContributionHistoryResponse{
		Status:        "success",
		CircleID:      circleID,
		Contributions: entries,
		Summary: models.ContributionSummary{
			TotalSaved:   summary.TotalSaved,
			PeriodTotal:  summary.PeriodTotal,
			Period:       period,
			Contributors: summary.Contributors,
			Entries:      summary.Entries,
		},
	}, nil
}

// command runs fn against circleID as one serialized, all-or-nothing unit and
// returns the aggregate as saved.
func (s *DefaultService) command(
	ctx context.Context,
	name string,
	circleID string,
	fn func(c *circle.Circle, now time.Time) error,
) (*circle.Circle, error) {
	unlock := s.locks.lock(circleID)
	defer unlock()

	now := s.clock().UTC()
	var saved *circle.Circle
	err := s.repo.UpdateCircle(ctx, circleID, circle.PeriodOf(now), func(c *circle.Circle) error {
		if err := fn(c, now); err != nil {
			return err
		}
		saved = c
		return nil
	})

	switch {
	case err == nil:
		s.metrics.ObserveCommand(name, metrics.OutcomeOK)
		return saved, nil
	case circle.IsDomainError(err):
		s.metrics.ObserveCommand(name, metrics.OutcomeRejected)
		return nil, err
	default:
		s.metrics.ObserveCommand(name, metrics.OutcomeError)
		s.logger.WithFields(logrus.Fields{
			"circle_id": circleID,
			"command":   name,
		}).WithError(err).Error("circle command failed")
		return nil, fmt.Errorf("error running %s: %w", name, err)
	}
}

// snapshot loads circleID for a read by userID. Circles the user does not
// belong to are reported as unknown.
func (s *DefaultService) snapshot(ctx context.Context, userID, circleID string) (*circle.Circle, error) {
	c, err := s.repo.LoadCircle(ctx, circleID, circle.PeriodOf(s.clock()))
	if err != nil {
		return nil, fmt.Errorf("error loading circle: %w", err)
	}
	if c == nil || !c.IsMember(userID) {
		return nil, circle.ErrUnknownCircle
	}
	return c, nil
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := s.clock().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": s.clock().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
