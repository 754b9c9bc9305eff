// Package models содержит доменную модель пользователя программы лояльности,
// записи журнала баллов и переводов, а также структуры для приёма данных из JSON-запросов.
package models

import (
	"strings"
	"time"
)

// MembershipLevel уровень участия пользователя в программе лояльности.
type MembershipLevel string

// Допустимые уровни участия.
const (
	MembershipBronze   MembershipLevel = "BRONZE"
	MembershipSilver   MembershipLevel = "SILVER"
	MembershipGold     MembershipLevel = "GOLD"
	MembershipPlatinum MembershipLevel = "PLATINUM"
)

// Valid сообщает, является ли значение одним из четырёх допустимых уровней.
func (l MembershipLevel) Valid() bool {
	switch l {
	case MembershipBronze, MembershipSilver, MembershipGold, MembershipPlatinum:
		return true
	}
	return false
}

// ParseMembershipLevel разбирает название уровня без учёта регистра.
func ParseMembershipLevel(s string) (MembershipLevel, error) {
	l := MembershipLevel(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", ErrInvalidMembershipLevel
	}
	return l, nil
}

// User представляет участника программы лояльности.
// ID назначается хранилищем при создании и больше не меняется.
type User struct {
	ID              int64           `json:"id" example:"1"`
	FirstName       string          `json:"firstName" example:"Иван"`
	LastName        string          `json:"lastName" example:"Петров"`
	Phone           *string         `json:"phone,omitempty" example:"081-234-5678"`
	Email           string          `json:"email" example:"ivan@example.com"`
	MemberSince     time.Time       `json:"memberSince"`
	MembershipLevel MembershipLevel `json:"membershipLevel" example:"GOLD"`
	Points          int             `json:"points" example:"1500"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// FullName возвращает имя и фамилию через пробел.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// View возвращает упрощённое представление пользователя.
func (u User) View() UserView {
	return UserView{
		ID:    u.ID,
		Name:  u.FullName(),
		Email: u.Email,
		Phone: u.Phone,
	}
}

// UserView упрощённое представление пользователя без данных программы лояльности.
type UserView struct {
	ID    int64   `json:"id" example:"1"`
	Name  string  `json:"name" example:"Иван Петров"`
	Email string  `json:"email" example:"ivan@example.com"`
	Phone *string `json:"phone,omitempty" example:"081-234-5678"`
}

// DummyUser используется для приёма данных нового пользователя из JSON-запроса.
// Необязательные поля равны nil, если клиент их не передал.
type DummyUser struct {
	FirstName       string           `json:"firstName" validate:"required"`
	LastName        string           `json:"lastName" validate:"required"`
	Phone           *string          `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email           string           `json:"email" validate:"required,email"`
	MemberSince     *time.Time       `json:"memberSince,omitempty"`
	MembershipLevel *MembershipLevel `json:"membershipLevel,omitempty" validate:"omitempty,oneof=BRONZE SILVER GOLD PLATINUM" swaggertype:"string" enums:"BRONZE,SILVER,GOLD,PLATINUM"`
	Points          *int             `json:"points,omitempty" validate:"omitempty,gte=0,lte=2147483647"`
}

// UserPatch данные для обновления пользователя.
// FirstName, LastName, Phone и Email перезаписываются всегда,
// остальные поля только если переданы.
type UserPatch struct {
	FirstName       string           `json:"firstName" validate:"required"`
	LastName        string           `json:"lastName" validate:"required"`
	Phone           *string          `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email           string           `json:"email" validate:"required,email"`
	MemberSince     *time.Time       `json:"memberSince,omitempty"`
	MembershipLevel *MembershipLevel `json:"membershipLevel,omitempty" validate:"omitempty,oneof=BRONZE SILVER GOLD PLATINUM" swaggertype:"string" enums:"BRONZE,SILVER,GOLD,PLATINUM"`
	Points          *int             `json:"points,omitempty" validate:"omitempty,gte=0,lte=2147483647"`
}

// PointsOperation тело запроса на начисление или списание баллов.
type PointsOperation struct {
	Points *int `json:"points" example:"100"`
}

// MembershipChange тело запроса на смену уровня участия.
type MembershipChange struct {
	MembershipLevel string `json:"membershipLevel" validate:"required,oneof=BRONZE SILVER GOLD PLATINUM" example:"PLATINUM"`
}
