package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/user-points/internal/models"
)

const userColumns = `id, first_name, last_name, phone, email, member_since,
	membership_level, points, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var phone sql.NullString
	var level string
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &phone, &u.Email, &u.MemberSince,
		&level, &u.Points, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Phone = stringPtr(phone)
	u.MembershipLevel = models.MembershipLevel(level)
	return &u, nil
}

// CreateUser вставляет пользователя и записи журнала в одной транзакции.
// ID пользователя назначается базой и проставляется в записи журнала.
func (s *Storage) CreateUser(ctx context.Context, u models.User, entries ...models.LedgerEntry) (*models.User, error) {
	const op = "storage.postgresql.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO users (first_name, last_name, phone, email, member_since,
			membership_level, points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+userColumns,
		u.FirstName, u.LastName, nullString(u.Phone), u.Email, u.MemberSince,
		string(u.MembershipLevel), u.Points, u.CreatedAt, u.UpdatedAt)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err, usersEmailConstraint) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, e := range entries {
		e.UserID = created.ID
		if err := insertLedger(ctx, tx, e); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// GetUser возвращает пользователя по ID или models.ErrNotFound.
func (s *Storage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.postgresql.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ExistsByEmail проверяет, занят ли email.
func (s *Storage) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const op = "storage.postgresql.ExistsByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// UpdateUser перезаписывает все изменяемые поля пользователя и добавляет записи журнала.
// created_at не обновляется.
func (s *Storage) UpdateUser(ctx context.Context, u models.User, entries ...models.LedgerEntry) (*models.User, error) {
	const op = "storage.postgresql.UpdateUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		UPDATE users
		SET first_name = $1, last_name = $2, phone = $3, email = $4, member_since = $5,
			membership_level = $6, points = $7, updated_at = $8
		WHERE id = $9
		RETURNING `+userColumns,
		u.FirstName, u.LastName, nullString(u.Phone), u.Email, u.MemberSince,
		string(u.MembershipLevel), u.Points, u.UpdatedAt, u.ID)
	updated, err := scanUser(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	case isUniqueViolation(err, usersEmailConstraint):
		return nil, fmt.Errorf("%s: %w", op, models.ErrDuplicateEmail)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, e := range entries {
		e.UserID = updated.ID
		if err := insertLedger(ctx, tx, e); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// DeleteUser удаляет пользователя вместе с его журналом баллов.
// История переводов сохраняется.
func (s *Storage) DeleteUser(ctx context.Context, id int64) error {
	const op = "storage.postgresql.DeleteUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// ListUsers возвращает всех пользователей в порядке создания.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.postgresql.ListUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListLedger возвращает журнал баллов пользователя, новые записи первыми.
func (s *Storage) ListLedger(ctx context.Context, userID int64) ([]*models.LedgerEntry, error) {
	const op = "storage.postgresql.ListLedger"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, change, balance_after, event_type, transfer_id, reference, created_at
		FROM point_ledger
		WHERE user_id = $1
		ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.LedgerEntry, 0)
	for rows.Next() {
		var e models.LedgerEntry
		var eventType string
		var transferID sql.NullInt64
		var reference sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Change, &e.BalanceAfter, &eventType,
			&transferID, &reference, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.EventType = models.EventType(eventType)
		e.TransferID = int64Ptr(transferID)
		e.Reference = stringPtr(reference)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func insertLedger(ctx context.Context, tx *sql.Tx, e models.LedgerEntry) error {
	var transferID sql.NullInt64
	if e.TransferID != nil {
		transferID = sql.NullInt64{Int64: *e.TransferID, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO point_ledger (user_id, change, balance_after, event_type, transfer_id, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.UserID, e.Change, e.BalanceAfter, string(e.EventType), transferID, nullString(e.Reference), e.CreatedAt)
	return err
}
