package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/user-points/internal/models"
)

const transferColumns = `id, idempotency_key, from_user_id, to_user_id, amount, status, note,
	created_at, updated_at, completed_at, fail_reason`

func scanTransfer(row scanner) (*models.Transfer, error) {
	var t models.Transfer
	var status string
	var note, failReason sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(&t.TransferID, &t.IdemKey, &t.FromUserID, &t.ToUserID, &t.Amount, &status, &note,
		&t.CreatedAt, &t.UpdatedAt, &completedAt, &failReason); err != nil {
		return nil, err
	}
	t.Status = models.TransferStatus(status)
	t.Note = stringPtr(note)
	t.CompletedAt = timePtr(completedAt)
	t.FailReason = stringPtr(failReason)
	return &t, nil
}

// CreateTransfer атомарно выполняет перевод: блокирует обоих пользователей,
// проверяет баланс отправителя, переносит баллы, пишет две записи журнала
// и переводит перевод в статус completed.
func (s *Storage) CreateTransfer(ctx context.Context, t models.Transfer) (*models.Transfer, error) {
	const op = "storage.postgresql.CreateTransfer"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if t.Amount < 1 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	// Блокировки берутся в порядке возрастания id, чтобы встречные переводы не взаимоблокировались.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, points FROM users
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, []int64{t.FromUserID, t.ToUserID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	balances := make(map[int64]int, 2)
	for rows.Next() {
		var id int64
		var points int
		if err := rows.Scan(&id, &points); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		balances[id] = points
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	_ = rows.Close()

	fromBalance, ok := balances[t.FromUserID]
	if !ok {
		return nil, fmt.Errorf("%s: sender %d: %w", op, t.FromUserID, models.ErrNotFound)
	}
	toBalance, ok := balances[t.ToUserID]
	if !ok {
		return nil, fmt.Errorf("%s: receiver %d: %w", op, t.ToUserID, models.ErrNotFound)
	}
	if fromBalance < t.Amount {
		return nil, fmt.Errorf("%s: %w", op, &models.InsufficientPointsError{Balance: fromBalance})
	}
	if t.Amount > models.MaxPoints-toBalance {
		return nil, fmt.Errorf("%s: receiver %d: %w", op, t.ToUserID, models.ErrInvalidPoints)
	}

	created, err := scanTransfer(tx.QueryRowContext(ctx, `
		INSERT INTO transfers (from_user_id, to_user_id, amount, status, note, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+transferColumns,
		t.FromUserID, t.ToUserID, t.Amount, string(models.TransferProcessing), nullString(t.Note), t.IdemKey, t.CreatedAt))
	if err != nil {
		if isUniqueViolation(err, transfersIdempotencyUnique) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrIdempotencyConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var fromAfter, toAfter int
	if err := tx.QueryRowContext(ctx,
		`UPDATE users SET points = points - $1, updated_at = $2 WHERE id = $3 RETURNING points`,
		t.Amount, t.CreatedAt, t.FromUserID).Scan(&fromAfter); err != nil {
		return nil, fmt.Errorf("%s: debit: %w", op, err)
	}
	if err := tx.QueryRowContext(ctx,
		`UPDATE users SET points = points + $1, updated_at = $2 WHERE id = $3 RETURNING points`,
		t.Amount, t.CreatedAt, t.ToUserID).Scan(&toAfter); err != nil {
		return nil, fmt.Errorf("%s: credit: %w", op, err)
	}

	reference := created.IdemKey
	entries := []models.LedgerEntry{
		{
			UserID: t.FromUserID, Change: -t.Amount, BalanceAfter: fromAfter,
			EventType: models.EventTransferOut, TransferID: &created.TransferID,
			Reference: &reference, CreatedAt: t.CreatedAt,
		},
		{
			UserID: t.ToUserID, Change: t.Amount, BalanceAfter: toAfter,
			EventType: models.EventTransferIn, TransferID: &created.TransferID,
			Reference: &reference, CreatedAt: t.CreatedAt,
		},
	}
	for _, e := range entries {
		if err := insertLedger(ctx, tx, e); err != nil {
			return nil, fmt.Errorf("%s: ledger: %w", op, err)
		}
	}

	completed, err := scanTransfer(tx.QueryRowContext(ctx, `
		UPDATE transfers SET status = $1, completed_at = $2, updated_at = $2
		WHERE id = $3
		RETURNING `+transferColumns,
		string(models.TransferCompleted), t.CreatedAt, created.TransferID))
	if err != nil {
		return nil, fmt.Errorf("%s: complete: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return completed, nil
}

// GetTransfer возвращает перевод по ключу идемпотентности или models.ErrTransferNotFound.
func (s *Storage) GetTransfer(ctx context.Context, idemKey string) (*models.Transfer, error) {
	const op = "storage.postgresql.GetTransfer"

	t, err := scanTransfer(s.DB.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE idempotency_key = $1`, idemKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrTransferNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// ListTransfers возвращает страницу переводов, где пользователь отправитель или получатель,
// новые первыми, и общее число таких переводов.
func (s *Storage) ListTransfers(ctx context.Context, userID int64, limit, offset int) ([]*models.Transfer, int, error) {
	const op = "storage.postgresql.ListTransfers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM transfers WHERE from_user_id = $1 OR to_user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Transfer, 0, limit)
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}
