package models

import "time"

// EventType причина изменения баланса в журнале баллов.
type EventType string

const (
	EventTransferOut EventType = "transfer_out"
	EventTransferIn  EventType = "transfer_in"
	EventAdjust      EventType = "adjust"
	EventEarn        EventType = "earn"
	EventRedeem      EventType = "redeem"
)

// LedgerEntry запись журнала баллов. Change положительный при начислении
// и отрицательный при списании, BalanceAfter это баланс после операции.
type LedgerEntry struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	Change       int       `json:"change" example:"-50"`
	BalanceAfter int       `json:"balanceAfter" example:"950"`
	EventType    EventType `json:"eventType" example:"redeem"`
	TransferID   *int64    `json:"transferId,omitempty"`
	Reference    *string   `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TransferStatus состояние перевода баллов.
type TransferStatus string

const (
	TransferPending    TransferStatus = "pending"
	TransferProcessing TransferStatus = "processing"
	TransferCompleted  TransferStatus = "completed"
	TransferFailed     TransferStatus = "failed"
	TransferCancelled  TransferStatus = "cancelled"
	TransferReversed   TransferStatus = "reversed"
)

// Transfer перевод баллов между пользователями.
// IdemKey служит публичным идентификатором перевода.
type Transfer struct {
	IdemKey     string         `json:"idemKey" example:"0b6f2e4c-5c1d-4d7e-9a55-3c2f1c0e8a11"`
	TransferID  int64          `json:"transferId"`
	FromUserID  int64          `json:"fromUserId"`
	ToUserID    int64          `json:"toUserId"`
	Amount      int            `json:"amount"`
	Status      TransferStatus `json:"status" example:"completed"`
	Note        *string        `json:"note,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	FailReason  *string        `json:"failReason,omitempty"`
}

// DummyTransfer используется для приёма запроса на перевод из JSON.
type DummyTransfer struct {
	FromUserID int64   `json:"fromUserId" validate:"required,gte=1"`
	ToUserID   int64   `json:"toUserId" validate:"required,gte=1"`
	Amount     int     `json:"amount" validate:"required,gte=1"`
	Note       *string `json:"note,omitempty" validate:"omitempty,max=512"`
}

// TransferPage страница истории переводов.
type TransferPage struct {
	Data     []*Transfer `json:"data"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
	Total    int         `json:"total"`
}
