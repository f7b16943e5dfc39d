package main

import (
	"context"
	"errors"

	"github.com/rongwang/savings-circles/internal/circle"
	"github.com/rongwang/savings-circles/internal/config"
	"github.com/rongwang/savings-circles/internal/models"
	"github.com/rongwang/savings-circles/internal/repository"
	"github.com/rongwang/savings-circles/internal/service"
	"github.com/rongwang/savings-circles/internal/utils"
	"github.com/sirupsen/logrus"
)

const demoPassword = "password123"

type demoCircle struct {
	name        string
	description string
	amount      int64
	admin       int
	members     []int
}

func main() {
	cfg := config.LoadConfig()
	logger := utils.NewLogger(cfg.Log.Level)
	logger.Info("Starting database seed...")

	if cfg.Database.Driver == "memory" {
		logger.Fatal("Seeding the memory store has no effect; set DB_DRIVER to postgres or sqlite3")
	}

	repo, closeRepo, err := repository.Open(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeRepo()

	svc := service.NewDefaultService(repo, service.Options{
		JWTSecret:              cfg.Auth.JWTSecret,
		DefaultAmountPerMember: cfg.Circle.DefaultAmountPerMember,
		Logger:                 logger,
	})

	ctx := context.Background()

	users := []models.SignUpRequest{
		{Email: "alice@example.com", Name: "Alice Smith", Password: demoPassword},
		{Email: "bob@example.com", Name: "Bob Johnson", Password: demoPassword},
		{Email: "charlie@example.com", Name: "Charlie Brown", Password: demoPassword},
	}

	ids := make([]string, len(users))
	for i, req := range users {
		id, err := ensureUser(ctx, svc, repo, req)
		if err != nil {
			logger.Fatalf("Failed to create user %s: %v", req.Email, err)
		}
		ids[i] = id
	}

	circles := []demoCircle{
		{name: "Family Circle", description: "Family savings and expenses", amount: 1000, admin: 0, members: []int{1}},
		{name: "Friends Group", description: "Friends' shared expenses", amount: 500, admin: 1, members: []int{0, 2}},
	}

	for _, dc := range circles {
		log := logger.WithField("circle", dc.name)
		adminID := ids[dc.admin]

		existing, err := svc.ListCircles(ctx, adminID)
		if err != nil {
			log.Fatalf("Failed to list circles: %v", err)
		}
		if hasCircle(existing, dc.name, adminID) {
			log.Info("Circle already exists, skipping")
			continue
		}

		created, err := svc.CreateCircle(ctx, adminID, models.CreateCircleRequest{
			Name:            dc.name,
			Description:     dc.description,
			AmountPerMember: dc.amount,
		})
		if err != nil {
			log.Fatalf("Failed to create circle: %v", err)
		}

		for _, m := range dc.members {
			if err := addMember(ctx, svc, adminID, created.ID, ids[m]); err != nil {
				log.Fatalf("Failed to add member: %v", err)
			}
		}

		// everyone pays in for the current period
		for _, id := range append([]string{adminID}, memberIDs(ids, dc.members)...) {
			if _, err := svc.RecordContribution(ctx, id, created.ID); err != nil && !errors.Is(err, circle.ErrDuplicatePeriod) {
				log.Fatalf("Failed to record contribution: %v", err)
			}
		}

		log.WithFields(logrus.Fields{
			"circle_id": created.ID,
			"members":   len(dc.members) + 1,
		}).Info("Created circle")
	}

	logger.Info("Database seed completed successfully!")
}

func ensureUser(ctx context.Context, svc service.Service, repo repository.Repository, req models.SignUpRequest) (string, error) {
	resp, err := svc.SignUp(ctx, req)
	if err == nil {
		return resp.UserID, nil
	}
	if !errors.Is(err, service.ErrEmailTaken) {
		return "", err
	}

	existing, err := repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", service.ErrEmailTaken
	}
	return existing.ID, nil
}

func addMember(ctx context.Context, svc service.Service, adminID, circleID, userID string) error {
	if _, err := svc.InviteMember(ctx, adminID, circleID, models.AddMemberRequest{UserID: userID}); err != nil {
		return err
	}
	_, err := svc.ApproveMember(ctx, adminID, circleID, userID)
	if errors.Is(err, circle.ErrInvalidState) {
		// already active
		return nil
	}
	return err
}

func hasCircle(circles []models.CircleResponse, name, creatorID string) bool {
	for _, c := range circles {
		if c.Name == name && c.CreatorID == creatorID {
			return true
		}
	}
	return false
}

func memberIDs(ids []string, members []int) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, ids[m])
	}
	return out
}
