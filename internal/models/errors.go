package models

import (
	"errors"
	"fmt"
	"math"
)

// MaxPoints наибольший баланс, который помещается в колонку users.points (INTEGER).
const MaxPoints = math.MaxInt32

// Ошибки предметной области, общие для сервисов, хранилищ и HTTP-слоя.
var (
	// ErrNotFound пользователь с указанным ID не найден.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail email уже занят другим пользователем.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrInsufficientPoints списание превышает баланс или сумма некорректна.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrInvalidPoints баланс вышел бы за пределы от 0 до MaxPoints.
	ErrInvalidPoints = errors.New("points must be between 0 and 2147483647")
	// ErrInvalidAmount сумма перевода должна быть положительной.
	ErrInvalidAmount = errors.New("transfer amount must be positive")
	// ErrInvalidMembershipLevel неизвестный уровень участия.
	ErrInvalidMembershipLevel = errors.New("invalid membership level")
	// ErrSelfTransfer попытка перевести баллы самому себе.
	ErrSelfTransfer = errors.New("cannot transfer points to yourself")
	// ErrTransferNotFound перевод с указанным ключом не найден.
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrIdempotencyConflict перевод с таким ключом уже создан параллельным запросом.
	ErrIdempotencyConflict = errors.New("transfer with this idempotency key already exists")
)

// InsufficientPointsError сообщает текущий баланс при отказе в списании.
type InsufficientPointsError struct {
	Balance int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points. current balance: %d", e.Balance)
}

// Is позволяет сравнивать ошибку с ErrInsufficientPoints через errors.Is.
func (e *InsufficientPointsError) Is(target error) bool {
	return target == ErrInsufficientPoints
}
