package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/user-points/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) AddPoints(ctx context.Context, id int64, amount *int) (*models.User, error) {
	args := m.Called(ctx, id, amount)
	if res := args.Get(0); res != nil {
		return res.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) DeductPoints(ctx context.Context, id int64, amount *int) (*models.User, error) {
	args := m.Called(ctx, id, amount)
	if res := args.Get(0); res != nil {
		return res.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func amountIs(n int) any {
	return mock.MatchedBy(func(a *int) bool { return a != nil && *a == n })
}

func TestPointsHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		deduct         bool
		id             string
		query          string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "начисление из тела",
			id:   "1",
			body: `{"points":50}`,
			setupMock: func(m *MockService) {
				m.On("AddPoints", mock.Anything, int64(1), amountIs(50)).
					Return(&models.User{ID: 1, Points: 150}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"points":150`,
		},
		{
			name:  "начисление из query",
			id:    "1",
			query: "?points=25",
			setupMock: func(m *MockService) {
				m.On("AddPoints", mock.Anything, int64(1), amountIs(25)).
					Return(&models.User{ID: 1, Points: 125}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"points":125`,
		},
		{
			name: "начисление без суммы",
			id:   "1",
			setupMock: func(m *MockService) {
				m.On("AddPoints", mock.Anything, int64(1), (*int)(nil)).
					Return(&models.User{ID: 1, Points: 100}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"points":100`,
		},
		{
			name:   "списание",
			deduct: true,
			id:     "1",
			body:   `{"points":30}`,
			setupMock: func(m *MockService) {
				m.On("DeductPoints", mock.Anything, int64(1), amountIs(30)).
					Return(&models.User{ID: 1, Points: 70}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"points":70`,
		},
		{
			name:   "списание больше баланса",
			deduct: true,
			id:     "1",
			body:   `{"points":500}`,
			setupMock: func(m *MockService) {
				m.On("DeductPoints", mock.Anything, int64(1), amountIs(500)).
					Return(nil, &models.InsufficientPointsError{Balance: 100})
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `insufficient points. current balance: 100`,
		},
		{
			name: "начисление сверх предела баланса",
			id:   "1",
			body: `{"points":2147483647}`,
			setupMock: func(m *MockService) {
				m.On("AddPoints", mock.Anything, int64(1), amountIs(2147483647)).
					Return(nil, fmt.Errorf("services.user.AddPoints: %w", models.ErrInvalidPoints))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `points must be between 0 and 2147483647`,
		},
		{
			name:  "пользователь не найден",
			id:    "404",
			query: "?points=1",
			setupMock: func(m *MockService) {
				m.On("AddPoints", mock.Anything, int64(404), amountIs(1)).Return(nil, models.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `user not found`,
		},
		{
			name:           "некорректная сумма в query",
			id:             "1",
			query:          "?points=ten",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid points amount`,
		},
		{
			name:           "некорректный JSON",
			id:             "1",
			body:           `{"points":"ten"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid points amount`,
		},
		{
			name:           "некорректный id",
			id:             "abc",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid id`,
		},
		{
			name:   "ошибка сервиса",
			deduct: true,
			id:     "1",
			body:   `{"points":1}`,
			setupMock: func(m *MockService) {
				m.On("DeductPoints", mock.Anything, int64(1), mock.Anything).Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not change points`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := NewAdd(logger, mockService)
			path := "/users/" + tt.id + "/points/add"
			if tt.deduct {
				handler = NewDeduct(logger, mockService)
				path = "/users/" + tt.id + "/points/deduct"
			}

			req := httptest.NewRequest(http.MethodPost, path+tt.query, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
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
