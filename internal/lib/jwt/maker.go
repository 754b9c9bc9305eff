// Package jwt реализует выпуск и проверку JWT токенов операторов сервиса.
//
// Токен подписывается алгоритмом HS256 и содержит имя оператора и его роль.
// Роль admin даёт право изменять баланс баллов, уровень участия и удалять пользователей.
package jwt

import (
	"time"
)

// Роли операторов.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Maker описывает выпуск и разбор JWT токенов.
type Maker interface {
	GenerateToken(username, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker с секретным ключом и временем жизни токена.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	issuer    string
}

// NewJWTMaker создаёт MakerImpl. Пустой issuer не записывается в токен и не проверяется.
func NewJWTMaker(secretKey string, ttl time.Duration, issuer string) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		issuer:    issuer,
	}
}
