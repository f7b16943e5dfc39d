package repository

import (
	"context"
	"errors"

	"github.com/rongwang/savings-circles/internal/circle"
	"github.com/rongwang/savings-circles/internal/models"
)

// ErrConflict is returned when a write violates a uniqueness constraint
var ErrConflict = errors.New("unique constraint violated")

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)

	// Circle operations
	CreateCircle(ctx context.Context, c *circle.Circle) error
	// LoadCircle returns a consistent snapshot of the circle with its ledger
	// loaded for period, or nil when the circle does not exist.
	LoadCircle(ctx context.Context, circleID, period string) (*circle.Circle, error)
	// UpdateCircle loads the circle exclusively, applies fn and saves the
	// result in one transaction. Nothing is saved when fn returns an error.
	UpdateCircle(ctx context.Context, circleID, period string, fn func(c *circle.Circle) error) error
	GetUserCircleIDs(ctx context.Context, userID string) ([]string, error)

	// Contribution operations
	// ListContributions returns the circle's ledger, newest first.
	ListContributions(ctx context.Context, circleID string) ([]models.Contribution, error)
}
