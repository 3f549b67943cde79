package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appaccounting "github.com/smartvillage/backend/internal/application/accounting"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPaymentRepository implements accounting.PaymentRepository for testing
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*accounting.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByIDForVillage(ctx context.Context, villageID, id uuid.UUID) (*accounting.Payment, error) {
	args := m.Called(ctx, villageID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindPendingByVillage(ctx context.Context, villageID uuid.UUID) ([]*accounting.Payment, error) {
	args := m.Called(ctx, villageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*accounting.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByExternalReference(ctx context.Context, villageID uuid.UUID, reference string) (*accounting.Payment, error) {
	args := m.Called(ctx, villageID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *accounting.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithLock(ctx context.Context, payment *accounting.Payment, expectedVersion int) error {
	args := m.Called(ctx, payment, expectedVersion)
	return args.Error(0)
}

// noopLocker hands out uncontended locks
type noopLocker struct{}

func (noopLocker) Acquire(ctx context.Context, villageID, propertyID uuid.UUID) (func(), error) {
	return func() {}, nil
}

func setupPaymentTestRouter() (*gin.Engine, *MockPaymentRepository, *PaymentHandler) {
	gin.SetMode(gin.TestMode)

	payments := new(MockPaymentRepository)
	uow := &fakeUnitOfWork{repos: accounting.Repositories{
		Payments: payments,
	}}
	receipts := appaccounting.NewReceiptService(uow, noopPublisher{})
	service := appaccounting.NewAllocationService(uow, noopLocker{}, receipts, noopPublisher{}, zap.NewNop())
	handler := NewPaymentHandler(service)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		setJWTContext(c, uuid.MustParse("00000000-0000-0000-0000-000000000001"), uuid.New())
		c.Next()
	})

	return router, payments, handler
}

func TestPaymentHandler_RecordPayment(t *testing.T) {
	villageID := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	t.Run("should record payment successfully", func(t *testing.T) {
		router, payments, handler := setupPaymentTestRouter()
		router.POST("/payments", handler.RecordPayment)

		payments.On("FindByExternalReference", mock.Anything, villageID, "TXN-20260815-001").
			Return(nil, shared.ErrNotFound)
		payments.On("Save", mock.Anything, mock.AnythingOfType("*accounting.Payment")).Return(nil)

		reqBody := RecordPaymentRequest{
			PropertyID:        uuid.New().String(),
			AmountUnits:       80000,
			Method:            string(accounting.PaymentMethodBankTransfer),
			ExternalReference: "TXN-20260815-001",
		}
		body, _ := json.Marshal(reqBody)

		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "pending", data["status"])
		assert.Equal(t, float64(80000), data["amount_units"])

		payments.AssertExpectations(t)
	})

	t.Run("should reject duplicate external reference", func(t *testing.T) {
		router, payments, handler := setupPaymentTestRouter()
		router.POST("/payments", handler.RecordPayment)

		existing, err := accounting.NewPayment(villageID, uuid.New(),
			valueobject.NewMoneyTHB(80000), accounting.PaymentMethodBankTransfer,
			time.Now(), "TXN-20260815-001", "")
		require.NoError(t, err)
		payments.On("FindByExternalReference", mock.Anything, villageID, "TXN-20260815-001").
			Return(existing, nil)

		reqBody := RecordPaymentRequest{
			PropertyID:        uuid.New().String(),
			AmountUnits:       80000,
			Method:            string(accounting.PaymentMethodBankTransfer),
			ExternalReference: "TXN-20260815-001",
		}
		body, _ := json.Marshal(reqBody)

		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("should reject unknown payment method", func(t *testing.T) {
		router, payments, handler := setupPaymentTestRouter()
		router.POST("/payments", handler.RecordPayment)

		payments.On("FindByExternalReference", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, shared.ErrNotFound).Maybe()

		reqBody := RecordPaymentRequest{
			PropertyID:  uuid.New().String(),
			AmountUnits: 80000,
			Method:      "barter",
		}
		body, _ := json.Marshal(reqBody)

		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should reject missing body", func(t *testing.T) {
		router, _, handler := setupPaymentTestRouter()
		router.POST("/payments", handler.RecordPayment)

		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPaymentHandler_GetPayment(t *testing.T) {
	villageID := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	t.Run("should get payment by ID", func(t *testing.T) {
		router, payments, handler := setupPaymentTestRouter()
		router.GET("/payments/:id", handler.GetPayment)

		payment, err := accounting.NewPayment(villageID, uuid.New(),
			valueobject.NewMoneyTHB(80000), accounting.PaymentMethodCash, time.Now(), "", "walk-in")
		require.NoError(t, err)
		payment.ClearDomainEvents()
		payments.On("FindByIDForVillage", mock.Anything, villageID, payment.ID).Return(payment, nil)

		req := httptest.NewRequest(http.MethodGet, "/payments/"+payment.ID.String(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, payment.ID.String(), data["id"])
		assert.Equal(t, "cash", data["method"])
	})

	t.Run("should return 404 for missing payment", func(t *testing.T) {
		router, payments, handler := setupPaymentTestRouter()
		router.GET("/payments/:id", handler.GetPayment)

		id := uuid.New()
		payments.On("FindByIDForVillage", mock.Anything, villageID, id).Return(nil, shared.ErrNotFound)

		req := httptest.NewRequest(http.MethodGet, "/payments/"+id.String(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPaymentHandler_ConfirmPayment(t *testing.T) {
	villageID := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	t.Run("should report already allocated payment as no-op", func(t *testing.T) {
		router, payments, handler := setupPaymentTestRouter()
		router.POST("/payments/:id/confirm", handler.ConfirmPayment)

		payment, err := accounting.NewPayment(villageID, uuid.New(),
			valueobject.NewMoneyTHB(80000), accounting.PaymentMethodBankTransfer, time.Now(), "", "")
		require.NoError(t, err)
		payment.ClearDomainEvents()
		require.NoError(t, payment.Confirm())
		require.NoError(t, payment.MarkAllocated(time.Now()))

		halts := new(MockPostingHaltRepository)
		halts.On("FindActive", mock.Anything, villageID).Return(nil, shared.ErrNotFound)
		payments.On("FindByIDForVillage", mock.Anything, villageID, payment.ID).Return(payment, nil)

		// Rebind the fake unit of work with halt support for this test.
		uow := &fakeUnitOfWork{repos: accounting.Repositories{
			Payments:     payments,
			PostingHalts: halts,
		}}
		receipts := appaccounting.NewReceiptService(uow, noopPublisher{})
		service := appaccounting.NewAllocationService(uow, noopLocker{}, receipts, noopPublisher{}, zap.NewNop())
		handler = NewPaymentHandler(service)
		router = gin.New()
		router.POST("/payments/:id/confirm", handler.ConfirmPayment)

		req := httptest.NewRequest(http.MethodPost, "/payments/"+payment.ID.String()+"/confirm", nil)
		req.Header.Set("X-Village-ID", villageID.String())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.True(t, data["already_allocated"].(bool))
	})

	t.Run("should return 400 for malformed payment ID", func(t *testing.T) {
		router, _, handler := setupPaymentTestRouter()
		router.POST("/payments/:id/confirm", handler.ConfirmPayment)

		req := httptest.NewRequest(http.MethodPost, "/payments/oops/confirm", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
