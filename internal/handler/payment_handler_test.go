package handler

import (
	"context"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/agrisetu/agrisetu-api/internal/models"
	"github.com/agrisetu/agrisetu-api/internal/service"
	"github.com/agrisetu/agrisetu-api/pkg/payu"
)

type fakePaymentRepo struct {
	payments map[string]models.Payment
	settled  []models.PaymentStatus
}

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment, txn *models.PayuTransaction) error {
	if payment.ID == "" {
		payment.ID = "p1"
	}
	f.payments[payment.ID] = *payment
	return nil
}

func (f *fakePaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := f.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePaymentRepo) FindByTransactionID(ctx context.Context, txnID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.TransactionID == txnID {
			payment := p
			return &payment, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakePaymentRepo) Settle(ctx context.Context, paymentID string, status models.PaymentStatus, method string, txn *models.PayuTransaction) error {
	p := f.payments[paymentID]
	p.Status = status
	f.payments[paymentID] = p
	f.settled = append(f.settled, status)
	return nil
}

func (f *fakePaymentRepo) ListByUser(ctx context.Context, userID string) ([]models.PaymentRecord, error) {
	return nil, nil
}

func (f *fakePaymentRepo) FindTransactionByPaymentID(ctx context.Context, paymentID string) (*models.PayuTransaction, error) {
	return nil, sql.ErrNoRows
}

type fakeCourseRepo struct {
	enrollments int
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) Enroll(ctx context.Context, enrollment *models.CourseEnrollment) error {
	f.enrollments++
	return nil
}

type fakeConsultationRepo struct {
	consultations map[string]models.Consultation
}

func (f *fakeConsultationRepo) FindByID(ctx context.Context, id string) (*models.Consultation, error) {
	if c, ok := f.consultations[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeConsultationRepo) UpdateStatus(ctx context.Context, id string, from, to models.ConsultationStatus, meetLink string) error {
	c := f.consultations[id]
	c.Status = to
	if meetLink != "" {
		c.MeetLink = meetLink
	}
	f.consultations[id] = c
	return nil
}

type fakeUserRepo struct{}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Email: "user@example.com", FullName: "Farm User"}, nil
}

func (f *fakeUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

var gatewayConfig = payu.Config{MerchantKey: "key", MerchantSalt: "salt", BaseURL: "https://test.payu.in/_payment"}

func callbackHash(req payu.Request, status string) string {
	fields := []string{
		gatewayConfig.MerchantSalt, status,
		"", "", "", "", "", "", "", "", "", "",
		req.Email, req.FirstName, req.ProductInfo, req.Amount, req.TxnID,
		gatewayConfig.MerchantKey,
	}
	sum := sha512.Sum512([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

func newPaymentHandlerFixture() (*PaymentHandler, *fakePaymentRepo, *fakeConsultationRepo) {
	payments := &fakePaymentRepo{payments: map[string]models.Payment{}}
	consultations := &fakeConsultationRepo{consultations: map[string]models.Consultation{}}
	svc := service.NewPaymentService(payments, &fakeCourseRepo{}, consultations, &fakeUserRepo{}, nil, nil, nil, service.PaymentConfig{
		Gateway:    gatewayConfig,
		SuccessURL: "https://api.agrisetu.in/api/v1/payments/callback/success",
		FailureURL: "https://api.agrisetu.in/api/v1/payments/callback/failure",
	})
	return NewPaymentHandler(svc, "https://app.agrisetu.in"), payments, consultations
}

func postCallback(handler func(*gin.Context), form url.Values) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/payments/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	handler(c)
	c.Writer.WriteHeaderNow()
	return rec
}

func TestSuccessCallbackRedirectsAndSettles(t *testing.T) {
	handler, payments, consultations := newPaymentHandlerFixture()
	consID := "cons-1"
	consultations.consultations[consID] = models.Consultation{ID: consID, Status: models.ConsultationPending}
	payments.payments["p1"] = models.Payment{ID: "p1", UserID: "u1", ConsultationID: &consID, TransactionID: "CONSULTATION_1", Status: models.PaymentInitiated}

	req := payu.Request{
		TxnID:       "CONSULTATION_1",
		Amount:      "300.00",
		ProductInfo: "Consultation booking",
		FirstName:   "Farm User",
		Email:       "user@example.com",
	}
	form := url.Values{
		"txnid":       {req.TxnID},
		"amount":      {req.Amount},
		"productinfo": {req.ProductInfo},
		"firstname":   {req.FirstName},
		"email":       {req.Email},
		"status":      {"success"},
		"mode":        {"UPI"},
		"hash":        {callbackHash(req, "success")},
	}

	rec := postCallback(handler.SuccessCallback, form)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://app.agrisetu.in/payment/success", rec.Header().Get("Location"))
	assert.Equal(t, models.PaymentCompleted, payments.payments["p1"].Status)
	assert.Equal(t, models.ConsultationApproved, consultations.consultations[consID].Status)
}

func TestSuccessCallbackTamperedHash(t *testing.T) {
	handler, payments, _ := newPaymentHandlerFixture()
	payments.payments["p1"] = models.Payment{ID: "p1", UserID: "u1", TransactionID: "COURSE_1", Status: models.PaymentInitiated}

	form := url.Values{
		"txnid":       {"COURSE_1"},
		"amount":      {"499.00"},
		"productinfo": {"Course"},
		"firstname":   {"Farm User"},
		"email":       {"user@example.com"},
		"status":      {"success"},
		"hash":        {"bogus"},
	}

	rec := postCallback(handler.SuccessCallback, form)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://app.agrisetu.in/payment/error?reason=hash_verification_failed", rec.Header().Get("Location"))
	assert.Equal(t, models.PaymentInitiated, payments.payments["p1"].Status, "a bad signature never settles")
}

func TestSuccessCallbackUnknownTransaction(t *testing.T) {
	handler, _, _ := newPaymentHandlerFixture()

	req := payu.Request{
		TxnID:       "COURSE_404",
		Amount:      "1.00",
		ProductInfo: "Course",
		FirstName:   "Farm User",
		Email:       "user@example.com",
	}
	form := url.Values{
		"txnid":       {req.TxnID},
		"amount":      {req.Amount},
		"productinfo": {req.ProductInfo},
		"firstname":   {req.FirstName},
		"email":       {req.Email},
		"status":      {"success"},
		"hash":        {callbackHash(req, "success")},
	}

	rec := postCallback(handler.SuccessCallback, form)

	assert.Equal(t, "https://app.agrisetu.in/payment/error?reason=payment_not_found", rec.Header().Get("Location"))
}

func TestFailureCallbackRedirects(t *testing.T) {
	handler, payments, consultations := newPaymentHandlerFixture()
	consID := "cons-1"
	consultations.consultations[consID] = models.Consultation{ID: consID, Status: models.ConsultationPending}
	payments.payments["p1"] = models.Payment{ID: "p1", UserID: "u1", ConsultationID: &consID, TransactionID: "CONSULTATION_1", Status: models.PaymentInitiated}

	req := payu.Request{
		TxnID:       "CONSULTATION_1",
		Amount:      "300.00",
		ProductInfo: "Consultation booking",
		FirstName:   "Farm User",
		Email:       "user@example.com",
	}
	form := url.Values{
		"txnid":       {req.TxnID},
		"amount":      {req.Amount},
		"productinfo": {req.ProductInfo},
		"firstname":   {req.FirstName},
		"email":       {req.Email},
		"status":      {"failure"},
		"error":       {"E000"},
		"hash":        {payu.GenerateHash(gatewayConfig, req)},
	}

	rec := postCallback(handler.FailureCallback, form)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://app.agrisetu.in/payment/failure", rec.Header().Get("Location"))
	assert.Equal(t, models.PaymentFailed, payments.payments["p1"].Status)
	assert.Equal(t, models.ConsultationPending, consultations.consultations[consID].Status, "a failed payment leaves the booking pending")
}
