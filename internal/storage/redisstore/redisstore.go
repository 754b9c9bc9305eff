// Package redisstore реализует хранилище пользователей, журнала баллов и переводов в Redis.
//
// Раскладка ключей:
//
//	users:seq              счётчик ID пользователей
//	user:{id}              пользователь в JSON
//	users:ids              sorted set ID пользователей (score = ID)
//	users:email:{email}    ID владельца email
//	ledger:seq             счётчик ID записей журнала
//	ledger:{id}            список записей журнала, новые слева
//	transfers:seq          счётчик ID переводов
//	transfer:{key}         перевод в JSON
//	transfers:user:{id}    sorted set ключей переводов пользователя (score = ID перевода)
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/user-points/internal/config"
)

const (
	keyUsersSeq     = "users:seq"
	keyUsersIDs     = "users:ids"
	keyLedgerSeq    = "ledger:seq"
	keyTransfersSeq = "transfers:seq"

	// maxTxRetries ограничивает число повторов оптимистичной транзакции.
	maxTxRetries = 10
)

var errTooManyRetries = errors.New("transaction aborted after too many retries")

func userKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

func emailKey(email string) string {
	return "users:email:" + email
}

func ledgerKey(userID int64) string {
	return "ledger:" + strconv.FormatInt(userID, 10)
}

func transferKey(idemKey string) string {
	return "transfer:" + idemKey
}

func userTransfersKey(userID int64) string {
	return "transfers:user:" + strconv.FormatInt(userID, 10)
}

// Store хранит данные сервиса в Redis.
type Store struct {
	Db *redis.Client
}

// New подключается к Redis и проверяет соединение.
func New(ctx context.Context, cfg config.RedisConnection) (*Store, error) {
	const op = "storage.redisstore.New"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{Db: db}, nil
}

// Close закрывает клиент Redis.
func (s *Store) Close() error {
	return s.Db.Close()
}

// Ping проверяет соединение с Redis.
func (s *Store) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx).Err()
}

// watch выполняет оптимистичную транзакцию, повторяя её при конфликте на наблюдаемых ключах.
func (s *Store) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.Db.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errTooManyRetries
}

func getJSON(ctx context.Context, c redis.Cmdable, key string, dest any) (bool, error) {
	val, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}
