package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/user-points/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetLedger(ctx context.Context, id int64) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.([]*models.LedgerEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestLedgerHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		id             string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "журнал пользователя",
			id:   "1",
			setupMock: func(m *MockService) {
				m.On("GetLedger", mock.Anything, int64(1)).Return([]*models.LedgerEntry{
					{ID: 2, UserID: 1, Change: -50, BalanceAfter: 50, EventType: models.EventRedeem},
					{ID: 1, UserID: 1, Change: 100, BalanceAfter: 100, EventType: models.EventEarn},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"balanceAfter":50,"eventType":"redeem"`,
		},
		{
			name: "пустой журнал",
			id:   "2",
			setupMock: func(m *MockService) {
				m.On("GetLedger", mock.Anything, int64(2)).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"data":[]`,
		},
		{
			name: "пользователь не найден",
			id:   "3",
			setupMock: func(m *MockService) {
				m.On("GetLedger", mock.Anything, int64(3)).Return(nil, models.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `user not found`,
		},
		{
			name:           "некорректный id",
			id:             "x",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid id`,
		},
		{
			name: "ошибка сервиса",
			id:   "4",
			setupMock: func(m *MockService) {
				m.On("GetLedger", mock.Anything, int64(4)).Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not read ledger`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodGet, "/users/"+tt.id+"/ledger", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
