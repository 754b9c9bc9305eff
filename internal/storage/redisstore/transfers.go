package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/user-points/internal/models"
)

// CreateTransfer атомарно выполняет перевод. Балансы обоих пользователей и ключ перевода
// находятся под WATCH, поэтому параллельное изменение любого из них перезапускает попытку.
func (s *Store) CreateTransfer(ctx context.Context, t models.Transfer) (*models.Transfer, error) {
	const op = "storage.redisstore.CreateTransfer"

	if t.Amount < 1 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}

	var completed models.Transfer
	err := s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, transferKey(t.IdemKey)).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return models.ErrIdempotencyConflict
		}

		var from, to models.User
		found, err := getJSON(ctx, tx, userKey(t.FromUserID), &from)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("sender %d: %w", t.FromUserID, models.ErrNotFound)
		}
		found, err = getJSON(ctx, tx, userKey(t.ToUserID), &to)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("receiver %d: %w", t.ToUserID, models.ErrNotFound)
		}
		if from.Points < t.Amount {
			return &models.InsufficientPointsError{Balance: from.Points}
		}
		if t.Amount > models.MaxPoints-to.Points {
			return fmt.Errorf("receiver %d: %w", t.ToUserID, models.ErrInvalidPoints)
		}

		transferID, err := s.Db.Incr(ctx, keyTransfersSeq).Result()
		if err != nil {
			return err
		}

		from.Points -= t.Amount
		from.UpdatedAt = t.CreatedAt
		to.Points += t.Amount
		to.UpdatedAt = t.CreatedAt

		completedAt := t.CreatedAt
		completed = t
		completed.TransferID = transferID
		completed.Status = models.TransferCompleted
		completed.UpdatedAt = t.CreatedAt
		completed.CompletedAt = &completedAt

		reference := t.IdemKey
		fromLedger, err := s.prepareLedger(ctx, from.ID, []models.LedgerEntry{{
			Change: -t.Amount, BalanceAfter: from.Points, EventType: models.EventTransferOut,
			TransferID: &transferID, Reference: &reference, CreatedAt: t.CreatedAt,
		}})
		if err != nil {
			return err
		}
		toLedger, err := s.prepareLedger(ctx, to.ID, []models.LedgerEntry{{
			Change: t.Amount, BalanceAfter: to.Points, EventType: models.EventTransferIn,
			TransferID: &transferID, Reference: &reference, CreatedAt: t.CreatedAt,
		}})
		if err != nil {
			return err
		}

		fromData, err := json.Marshal(from)
		if err != nil {
			return err
		}
		toData, err := json.Marshal(to)
		if err != nil {
			return err
		}
		transferData, err := json.Marshal(completed)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(from.ID), fromData, 0)
			pipe.Set(ctx, userKey(to.ID), toData, 0)
			pipe.Set(ctx, transferKey(t.IdemKey), transferData, 0)
			member := redis.Z{Score: float64(transferID), Member: t.IdemKey}
			pipe.ZAdd(ctx, userTransfersKey(from.ID), member)
			pipe.ZAdd(ctx, userTransfersKey(to.ID), member)
			pushLedger(ctx, pipe, from.ID, fromLedger)
			pushLedger(ctx, pipe, to.ID, toLedger)
			return nil
		})
		return err
	}, userKey(t.FromUserID), userKey(t.ToUserID), transferKey(t.IdemKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &completed, nil
}

// GetTransfer возвращает перевод по ключу идемпотентности или models.ErrTransferNotFound.
func (s *Store) GetTransfer(ctx context.Context, idemKey string) (*models.Transfer, error) {
	const op = "storage.redisstore.GetTransfer"

	var t models.Transfer
	found, err := getJSON(ctx, s.Db, transferKey(idemKey), &t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, models.ErrTransferNotFound)
	}
	return &t, nil
}

// ListTransfers возвращает страницу переводов пользователя, новые первыми, и их общее число.
func (s *Store) ListTransfers(ctx context.Context, userID int64, limit, offset int) ([]*models.Transfer, int, error) {
	const op = "storage.redisstore.ListTransfers"

	key := userTransfersKey(userID)
	total, err := s.Db.ZCard(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	result := make([]*models.Transfer, 0, limit)
	if total == 0 || limit <= 0 {
		return result, int(total), nil
	}

	idemKeys, err := s.Db.ZRevRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(idemKeys) == 0 {
		return result, int(total), nil
	}

	keys := make([]string, 0, len(idemKeys))
	for _, k := range idemKeys {
		keys = append(keys, transferKey(k))
	}
	values, err := s.Db.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var t models.Transfer
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &t)
	}
	return result, int(total), nil
}
