package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/user-points/internal/models"
)

// CreateUser назначает ID, резервирует email и сохраняет пользователя вместе с записями журнала.
func (s *Store) CreateUser(ctx context.Context, u models.User, entries ...models.LedgerEntry) (*models.User, error) {
	const op = "storage.redisstore.CreateUser"

	id, err := s.Db.Incr(ctx, keyUsersSeq).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.Db.SetNX(ctx, emailKey(u.Email), id, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrDuplicateEmail)
	}

	u.ID = id
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ledger, err := s.prepareLedger(ctx, id, entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.Db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, userKey(id), data, 0)
		pipe.ZAdd(ctx, keyUsersIDs, redis.Z{Score: float64(id), Member: id})
		pushLedger(ctx, pipe, id, ledger)
		return nil
	})
	if err != nil {
		_ = s.Db.Del(ctx, emailKey(u.Email)).Err()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// GetUser возвращает пользователя по ID или models.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.redisstore.GetUser"

	var u models.User
	found, err := getJSON(ctx, s.Db, userKey(id), &u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return &u, nil
}

// ExistsByEmail проверяет, занят ли email.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const op = "storage.redisstore.ExistsByEmail"

	n, err := s.Db.Exists(ctx, emailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// UpdateUser перезаписывает пользователя. При смене email переносит резерв email на новый адрес.
func (s *Store) UpdateUser(ctx context.Context, u models.User, entries ...models.LedgerEntry) (*models.User, error) {
	const op = "storage.redisstore.UpdateUser"

	var updated models.User
	err := s.watch(ctx, func(tx *redis.Tx) error {
		var existing models.User
		found, err := getJSON(ctx, tx, userKey(u.ID), &existing)
		if err != nil {
			return err
		}
		if !found {
			return models.ErrNotFound
		}

		emailChanged := existing.Email != u.Email
		if emailChanged {
			owner, err := tx.Get(ctx, emailKey(u.Email)).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if err == nil && owner != strconv.FormatInt(u.ID, 10) {
				return models.ErrDuplicateEmail
			}
		}

		updated = u
		updated.CreatedAt = existing.CreatedAt
		data, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		ledger, err := s.prepareLedger(ctx, u.ID, entries)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(u.ID), data, 0)
			if emailChanged {
				pipe.Del(ctx, emailKey(existing.Email))
				pipe.Set(ctx, emailKey(u.Email), u.ID, 0)
			}
			pushLedger(ctx, pipe, u.ID, ledger)
			return nil
		})
		return err
	}, userKey(u.ID), emailKey(u.Email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &updated, nil
}

// DeleteUser удаляет пользователя, резерв его email и журнал баллов.
// Ключи переводов сохраняются.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	const op = "storage.redisstore.DeleteUser"

	err := s.watch(ctx, func(tx *redis.Tx) error {
		var existing models.User
		found, err := getJSON(ctx, tx, userKey(id), &existing)
		if err != nil {
			return err
		}
		if !found {
			return models.ErrNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, userKey(id), emailKey(existing.Email), ledgerKey(id))
			pipe.ZRem(ctx, keyUsersIDs, id)
			return nil
		})
		return err
	}, userKey(id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListUsers возвращает всех пользователей в порядке возрастания ID.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.redisstore.ListUsers"

	ids, err := s.Db.ZRange(ctx, keyUsersIDs, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result := make([]*models.User, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, "user:"+id)
	}
	values, err := s.Db.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var u models.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &u)
	}
	return result, nil
}

// ListLedger возвращает журнал баллов пользователя, новые записи первыми.
func (s *Store) ListLedger(ctx context.Context, userID int64) ([]*models.LedgerEntry, error) {
	const op = "storage.redisstore.ListLedger"

	values, err := s.Db.LRange(ctx, ledgerKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result := make([]*models.LedgerEntry, 0, len(values))
	for _, raw := range values {
		var e models.LedgerEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &e)
	}
	return result, nil
}

// prepareLedger назначает записям ID и владельца и сериализует их.
func (s *Store) prepareLedger(ctx context.Context, userID int64, entries []models.LedgerEntry) ([][]byte, error) {
	result := make([][]byte, 0, len(entries))
	for _, e := range entries {
		id, err := s.Db.Incr(ctx, keyLedgerSeq).Result()
		if err != nil {
			return nil, err
		}
		e.ID = id
		e.UserID = userID
		data, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		result = append(result, data)
	}
	return result, nil
}

func pushLedger(ctx context.Context, pipe redis.Pipeliner, userID int64, entries [][]byte) {
	for _, data := range entries {
		pipe.LPush(ctx, ledgerKey(userID), data)
	}
}
