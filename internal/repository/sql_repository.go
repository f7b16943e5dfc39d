package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rongwang/savings-circles/internal/circle"
	"github.com/rongwang/savings-circles/internal/models"
)

const (
	circleColumns       = `id, name, description, creator_id, amount_per_member, proposed_amount, proposer_id, created_at, updated_at`
	memberColumns       = `id, circle_id, user_id, role, status, created_at`
	approvalColumns     = `circle_id, user_id, approved, position`
	contributionColumns = `id, circle_id, user_id, amount, period, recorded_at`
)

// SQLRepository implements the Repository interface on top of sqlx. Queries
// are written with ? placeholders and rebound for the connected driver, so
// the same repository serves PostgreSQL and SQLite.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository creates a new SQL repository
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{
		db: db,
	}
}

// User repository methods
func (r *SQLRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`
		INSERT INTO users (id, email, name, password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Password, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}

	return err
}

func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `SELECT id, email, name, password, created_at, updated_at FROM users WHERE email = ?`, email)
}

func (r *SQLRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, `SELECT id, email, name, password, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (r *SQLRepository) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(query), arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *SQLRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT id, email, name, password, created_at, updated_at FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return users, nil
}

// Circle repository methods
func (r *SQLRepository) CreateCircle(ctx context.Context, c *circle.Circle) error {
	return r.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		info := c.Info()
		query := tx.Rebind(`
			INSERT INTO circles (` + circleColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)

		_, err := tx.ExecContext(ctx, query,
			info.ID, info.Name, info.Description, info.CreatorID, info.AmountPerMember,
			info.ProposedAmount, info.ProposerID, info.CreatedAt, info.UpdatedAt)
		if err != nil {
			return err
		}

		return r.saveCircleTx(ctx, tx, c)
	})
}

func (r *SQLRepository) LoadCircle(ctx context.Context, circleID, period string) (*circle.Circle, error) {
	var loaded *circle.Circle
	err := r.withTx(ctx, r.readTxOptions(), func(tx *sqlx.Tx) error {
		var err error
		loaded, err = r.loadCircleTx(ctx, tx, circleID, period, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	return loaded, nil
}

func (r *SQLRepository) UpdateCircle(
	ctx context.Context,
	circleID string,
	period string,
	fn func(c *circle.Circle) error,
) error {
	return r.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		c, err := r.loadCircleTx(ctx, tx, circleID, period, true)
		if err != nil {
			return err
		}
		if c == nil {
			return circle.ErrUnknownCircle
		}

		if err := fn(c); err != nil {
			return err
		}

		return r.saveCircleTx(ctx, tx, c)
	})
}

func (r *SQLRepository) GetUserCircleIDs(ctx context.Context, userID string) ([]string, error) {
	query := r.db.Rebind(`
		SELECT c.id FROM circles c
		JOIN circle_members cm ON c.id = cm.circle_id
		WHERE cm.user_id = ?
		ORDER BY c.created_at ASC, c.id ASC
	`)

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, err
	}

	return ids, nil
}

// Contribution repository methods
func (r *SQLRepository) ListContributions(ctx context.Context, circleID string) ([]models.Contribution, error) {
	query := r.db.Rebind(`
		SELECT ` + contributionColumns + ` FROM contributions
		WHERE circle_id = ?
		ORDER BY recorded_at DESC, id DESC
	`)

	var contributions []models.Contribution
	if err := r.db.SelectContext(ctx, &contributions, query, circleID); err != nil {
		return nil, err
	}

	return contributions, nil
}

// loadCircleTx reads every part of the aggregate inside tx. With lock set the
// circle row is held FOR UPDATE on drivers that support row locks.
func (r *SQLRepository) loadCircleTx(
	ctx context.Context,
	tx *sqlx.Tx,
	circleID string,
	period string,
	lock bool,
) (*circle.Circle, error) {
	query := `SELECT ` + circleColumns + ` FROM circles WHERE id = ?`
	if lock && r.supportsRowLocks() {
		query += ` FOR UPDATE`
	}

	var info models.Circle
	if err := tx.GetContext(ctx, &info, tx.Rebind(query), circleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Circle not found
		}
		return nil, err
	}

	var members []models.CircleMember
	err := tx.SelectContext(ctx, &members,
		tx.Rebind(`SELECT `+memberColumns+` FROM circle_members WHERE circle_id = ? ORDER BY id ASC`),
		circleID)
	if err != nil {
		return nil, err
	}

	var approvals []models.AmountApproval
	err = tx.SelectContext(ctx, &approvals,
		tx.Rebind(`SELECT `+approvalColumns+` FROM amount_approvals WHERE circle_id = ? ORDER BY position ASC`),
		circleID)
	if err != nil {
		return nil, err
	}

	var contributions []models.Contribution
	err = tx.SelectContext(ctx, &contributions,
		tx.Rebind(`SELECT `+contributionColumns+` FROM contributions WHERE circle_id = ? AND period = ?`),
		circleID, period)
	if err != nil {
		return nil, err
	}

	return circle.Restore(info, members, approvals, period, contributions), nil
}

// saveCircleTx writes the aggregate's mutable state. Memberships are upserted,
// the approval set is replaced and newly recorded contributions are inserted.
func (r *SQLRepository) saveCircleTx(ctx context.Context, tx *sqlx.Tx, c *circle.Circle) error {
	info := c.Info()
	_, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE circles SET amount_per_member = ?, proposed_amount = ?, proposer_id = ?, updated_at = ? WHERE id = ?`),
		info.AmountPerMember, info.ProposedAmount, info.ProposerID, info.UpdatedAt, info.ID)
	if err != nil {
		return fmt.Errorf("update circle: %w", err)
	}

	upsertMember := tx.Rebind(`
		INSERT INTO circle_members (circle_id, user_id, role, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (circle_id, user_id) DO UPDATE SET role = excluded.role, status = excluded.status
	`)
	for _, m := range c.Members() {
		if _, err := tx.ExecContext(ctx, upsertMember, m.CircleID, m.UserID, m.Role, m.Status, m.CreatedAt); err != nil {
			return fmt.Errorf("save member %s: %w", m.UserID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM amount_approvals WHERE circle_id = ?`), info.ID); err != nil {
		return fmt.Errorf("clear approvals: %w", err)
	}

	if p := c.Proposal(); p != nil {
		insertApproval := tx.Rebind(`INSERT INTO amount_approvals (` + approvalColumns + `) VALUES (?, ?, ?, ?)`)
		for _, a := range p.Approvals() {
			if _, err := tx.ExecContext(ctx, insertApproval, a.CircleID, a.UserID, a.Approved, a.Position); err != nil {
				return fmt.Errorf("save approval %s: %w", a.UserID, err)
			}
		}
	}

	insertContribution := tx.Rebind(`INSERT INTO contributions (` + contributionColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, contribution := range c.Recorded() {
		_, err := tx.ExecContext(ctx, insertContribution,
			contribution.ID, contribution.CircleID, contribution.UserID,
			contribution.Amount, contribution.Period, contribution.RecordedAt)
		if isUniqueViolation(err) {
			return circle.ErrDuplicatePeriod
		}
		if err != nil {
			return fmt.Errorf("save contribution: %w", err)
		}
	}

	return nil
}

// withTx runs fn inside a transaction, rolling back when fn fails
func (r *SQLRepository) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// readTxOptions pins every SELECT of a load to one snapshot on postgres.
// SQLite runs on a single connection.
func (r *SQLRepository) readTxOptions() *sql.TxOptions {
	if !r.supportsRowLocks() {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

func (r *SQLRepository) supportsRowLocks() bool {
	return r.db.DriverName() == "postgres"
}

// isUniqueViolation detects unique constraint failures from either driver
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
