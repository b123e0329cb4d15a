package service

import (
	"context"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisetu/agrisetu-api/internal/models"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
	"github.com/agrisetu/agrisetu-api/pkg/payu"
)

type mockPaymentRepo struct {
	payments     map[string]models.Payment
	created      *models.Payment
	createdTxn   *models.PayuTransaction
	settled      []models.PaymentStatus
	settledTxn   *models.PayuTransaction
	transactions map[string]models.PayuTransaction
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment, txn *models.PayuTransaction) error {
	if m.payments == nil {
		m.payments = make(map[string]models.Payment)
	}
	if payment.ID == "" {
		payment.ID = "new-payment"
	}
	txn.PaymentID = payment.ID
	m.payments[payment.ID] = *payment
	m.created = payment
	m.createdTxn = txn
	return nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) FindByTransactionID(ctx context.Context, txnID string) (*models.Payment, error) {
	for _, p := range m.payments {
		if p.TransactionID == txnID {
			payment := p
			return &payment, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) Settle(ctx context.Context, paymentID string, status models.PaymentStatus, method string, txn *models.PayuTransaction) error {
	p, ok := m.payments[paymentID]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = status
	p.Method = method
	m.payments[paymentID] = p
	m.settled = append(m.settled, status)
	m.settledTxn = txn
	return nil
}

func (m *mockPaymentRepo) ListByUser(ctx context.Context, userID string) ([]models.PaymentRecord, error) {
	return nil, nil
}

func (m *mockPaymentRepo) FindTransactionByPaymentID(ctx context.Context, paymentID string) (*models.PayuTransaction, error) {
	if txn, ok := m.transactions[paymentID]; ok {
		return &txn, nil
	}
	return nil, sql.ErrNoRows
}

type mockCourseReader struct {
	courses     map[string]models.Course
	enrollments []models.CourseEnrollment
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseReader) Enroll(ctx context.Context, enrollment *models.CourseEnrollment) error {
	m.enrollments = append(m.enrollments, *enrollment)
	return nil
}

var testGateway = payu.Config{
	MerchantKey:  "testkey",
	MerchantSalt: "testsalt",
	BaseURL:      "https://test.payu.in/_payment",
}

// responseHash mirrors the gateway's reverse-order success signature.
func responseHash(cfg payu.Config, req payu.Request, status string) string {
	fields := []string{
		cfg.MerchantSalt, status,
		"", "", "", "", "", "", "", "", "", "",
		req.Email, req.FirstName, req.ProductInfo, req.Amount, req.TxnID,
		cfg.MerchantKey,
	}
	sum := sha512.Sum512([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

func newPaymentFixture() (*PaymentService, *mockPaymentRepo, *mockCourseReader, *mockConsultationRepo, *mockUserReader) {
	payments := &mockPaymentRepo{}
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Title: "Drip Irrigation Basics", Price: 499},
	}}
	consultations := &mockConsultationRepo{consultations: map[string]models.Consultation{
		"cons-1": {ID: "cons-1", UserID: "u1", InstructorID: "i1", Status: models.ConsultationPending, Price: 300},
	}}
	users := &mockUserReader{users: map[string]models.User{
		"u1": {ID: "u1", Email: "user@example.com", FullName: "Farm User"},
	}}
	svc := NewPaymentService(payments, courses, consultations, users, nil, nil, nil, PaymentConfig{
		Gateway:    testGateway,
		SuccessURL: "https://api.agrisetu.in/api/v1/payments/callback/success",
		FailureURL: "https://api.agrisetu.in/api/v1/payments/callback/failure",
	})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, payments, courses, consultations, users
}

func TestInitiateCoursePayment(t *testing.T) {
	svc, payments, _, _, _ := newPaymentFixture()

	resp, err := svc.Initiate(context.Background(), "u1", InitiatePaymentRequest{CourseID: "course-1"})
	require.NoError(t, err)

	assert.Equal(t, "COURSE_1700000000000", resp.Params.TxnID)
	assert.Equal(t, "499.00", resp.Params.Amount)
	assert.Equal(t, "Drip Irrigation Basics", resp.Params.ProductInfo)
	assert.Equal(t, testGateway.BaseURL, resp.PaymentURL)

	expected := payu.GenerateHash(testGateway, payu.Request{
		TxnID:       "COURSE_1700000000000",
		Amount:      "499.00",
		ProductInfo: "Drip Irrigation Basics",
		FirstName:   "Farm User",
		Email:       "user@example.com",
	})
	assert.Equal(t, expected, resp.Params.Hash)

	require.NotNil(t, payments.created)
	assert.Equal(t, models.PaymentInitiated, payments.created.Status)
	assert.Equal(t, "INR", payments.created.Currency)
	require.NotNil(t, payments.created.CourseID)
	assert.Equal(t, "course-1", *payments.created.CourseID)
}

func TestInitiateConsultationPayment(t *testing.T) {
	svc, payments, _, _, _ := newPaymentFixture()

	resp, err := svc.Initiate(context.Background(), "u1", InitiatePaymentRequest{ConsultationID: "cons-1"})
	require.NoError(t, err)

	assert.Equal(t, "CONSULTATION_1700000000000", resp.Params.TxnID)
	assert.Equal(t, "300.00", resp.Params.Amount)
	assert.Equal(t, "Consultation booking", resp.Params.ProductInfo)
	require.NotNil(t, payments.created.ConsultationID)
}

func TestInitiateRejectsAmbiguousTarget(t *testing.T) {
	svc, payments, _, _, _ := newPaymentFixture()

	_, err := svc.Initiate(context.Background(), "u1", InitiatePaymentRequest{CourseID: "course-1", ConsultationID: "cons-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Initiate(context.Background(), "u1", InitiatePaymentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	assert.Nil(t, payments.created)
}

func TestInitiateForbidsOthersConsultation(t *testing.T) {
	svc, _, _, _, users := newPaymentFixture()
	users.users["u2"] = models.User{ID: "u2", Email: "other@example.com", FullName: "Other"}

	_, err := svc.Initiate(context.Background(), "u2", InitiatePaymentRequest{ConsultationID: "cons-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func seedInitiatedPayment(t *testing.T, svc *PaymentService, req InitiatePaymentRequest) *InitiatePaymentResponse {
	t.Helper()
	resp, err := svc.Initiate(context.Background(), "u1", req)
	require.NoError(t, err)
	return resp
}

func TestConfirmSuccessApprovesConsultation(t *testing.T) {
	svc, payments, _, consultations, _ := newPaymentFixture()
	resp := seedInitiatedPayment(t, svc, InitiatePaymentRequest{ConsultationID: "cons-1"})

	cb := GatewayCallback{
		TxnID:       resp.Params.TxnID,
		Amount:      resp.Params.Amount,
		ProductInfo: resp.Params.ProductInfo,
		FirstName:   resp.Params.FirstName,
		Email:       resp.Params.Email,
		Status:      "success",
		Mode:        "UPI",
	}
	cb.Hash = responseHash(testGateway, payu.Request{
		TxnID:       cb.TxnID,
		Amount:      cb.Amount,
		ProductInfo: cb.ProductInfo,
		FirstName:   cb.FirstName,
		Email:       cb.Email,
	}, cb.Status)

	require.NoError(t, svc.ConfirmSuccess(context.Background(), cb))

	settled, err := payments.FindByTransactionID(context.Background(), cb.TxnID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, settled.Status)
	assert.Equal(t, "UPI", settled.Method)
	assert.Equal(t, models.ConsultationApproved, consultations.consultations["cons-1"].Status)
}

func TestConfirmSuccessEnrollsCourseBuyer(t *testing.T) {
	svc, _, courses, _, _ := newPaymentFixture()
	resp := seedInitiatedPayment(t, svc, InitiatePaymentRequest{CourseID: "course-1"})

	cb := GatewayCallback{
		TxnID:       resp.Params.TxnID,
		Amount:      resp.Params.Amount,
		ProductInfo: resp.Params.ProductInfo,
		FirstName:   resp.Params.FirstName,
		Email:       resp.Params.Email,
		Status:      "success",
		Mode:        "CC",
	}
	cb.Hash = responseHash(testGateway, payu.Request{
		TxnID:       cb.TxnID,
		Amount:      cb.Amount,
		ProductInfo: cb.ProductInfo,
		FirstName:   cb.FirstName,
		Email:       cb.Email,
	}, cb.Status)

	require.NoError(t, svc.ConfirmSuccess(context.Background(), cb))
	require.Len(t, courses.enrollments, 1)
	assert.Equal(t, "u1", courses.enrollments[0].UserID)
	assert.Equal(t, "course-1", courses.enrollments[0].CourseID)
}

func TestConfirmSuccessRejectsTamperedHash(t *testing.T) {
	svc, payments, _, consultations, _ := newPaymentFixture()
	resp := seedInitiatedPayment(t, svc, InitiatePaymentRequest{ConsultationID: "cons-1"})

	cb := GatewayCallback{
		TxnID:       resp.Params.TxnID,
		Amount:      "1.00", // attacker rewrote the amount
		ProductInfo: resp.Params.ProductInfo,
		FirstName:   resp.Params.FirstName,
		Email:       resp.Params.Email,
		Status:      "success",
	}
	cb.Hash = responseHash(testGateway, payu.Request{
		TxnID:       cb.TxnID,
		Amount:      resp.Params.Amount,
		ProductInfo: cb.ProductInfo,
		FirstName:   cb.FirstName,
		Email:       cb.Email,
	}, cb.Status)

	err := svc.ConfirmSuccess(context.Background(), cb)
	require.Error(t, err)
	assert.Equal(t, ErrHashMismatch.Code, appErrors.FromError(err).Code)

	assert.Empty(t, payments.settled, "nothing settles on a bad signature")
	assert.Equal(t, models.ConsultationPending, consultations.consultations["cons-1"].Status)
}

func TestConfirmSuccessUnknownTransaction(t *testing.T) {
	svc, _, _, _, _ := newPaymentFixture()

	req := payu.Request{
		TxnID:       "CONSULTATION_999",
		Amount:      "300.00",
		ProductInfo: "Consultation booking",
		FirstName:   "Farm User",
		Email:       "user@example.com",
	}
	err := svc.ConfirmSuccess(context.Background(), GatewayCallback{
		TxnID:       req.TxnID,
		Amount:      req.Amount,
		ProductInfo: req.ProductInfo,
		FirstName:   req.FirstName,
		Email:       req.Email,
		Status:      "success",
		Hash:        responseHash(testGateway, req, "success"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestConfirmSuccessToleratesApprovalRace(t *testing.T) {
	svc, payments, _, consultations, _ := newPaymentFixture()
	resp := seedInitiatedPayment(t, svc, InitiatePaymentRequest{ConsultationID: "cons-1"})

	// The instructor approved before the gateway called back.
	c := consultations.consultations["cons-1"]
	c.Status = models.ConsultationApproved
	consultations.consultations["cons-1"] = c

	cb := GatewayCallback{
		TxnID:       resp.Params.TxnID,
		Amount:      resp.Params.Amount,
		ProductInfo: resp.Params.ProductInfo,
		FirstName:   resp.Params.FirstName,
		Email:       resp.Params.Email,
		Status:      "success",
	}
	cb.Hash = responseHash(testGateway, payu.Request{
		TxnID:       cb.TxnID,
		Amount:      cb.Amount,
		ProductInfo: cb.ProductInfo,
		FirstName:   cb.FirstName,
		Email:       cb.Email,
	}, cb.Status)

	require.NoError(t, svc.ConfirmSuccess(context.Background(), cb))
	assert.Equal(t, []models.PaymentStatus{models.PaymentCompleted}, payments.settled)
}

func TestConfirmFailureLeavesConsultationPending(t *testing.T) {
	svc, payments, _, consultations, _ := newPaymentFixture()
	resp := seedInitiatedPayment(t, svc, InitiatePaymentRequest{ConsultationID: "cons-1"})

	// Failure posts echo the original request hash.
	err := svc.ConfirmFailure(context.Background(), GatewayCallback{
		TxnID:        resp.Params.TxnID,
		Amount:       resp.Params.Amount,
		ProductInfo:  resp.Params.ProductInfo,
		FirstName:    resp.Params.FirstName,
		Email:        resp.Params.Email,
		Status:       "failure",
		ErrorCode:    "E000",
		ErrorMessage: "transaction declined",
		Hash:         resp.Params.Hash,
	})
	require.NoError(t, err)

	assert.Equal(t, []models.PaymentStatus{models.PaymentFailed}, payments.settled)
	assert.Equal(t, "E000", payments.settledTxn.ErrorCode)
	assert.Equal(t, models.ConsultationPending, consultations.consultations["cons-1"].Status)
}

func TestConfirmFailureRejectsBadHash(t *testing.T) {
	svc, payments, _, _, _ := newPaymentFixture()
	resp := seedInitiatedPayment(t, svc, InitiatePaymentRequest{ConsultationID: "cons-1"})

	err := svc.ConfirmFailure(context.Background(), GatewayCallback{
		TxnID:       resp.Params.TxnID,
		Amount:      resp.Params.Amount,
		ProductInfo: resp.Params.ProductInfo,
		FirstName:   resp.Params.FirstName,
		Email:       resp.Params.Email,
		Status:      "failure",
		Hash:        "deadbeef",
	})
	require.Error(t, err)
	assert.Equal(t, ErrHashMismatch.Code, appErrors.FromError(err).Code)
	assert.Empty(t, payments.settled)
}

func TestReceiptGates(t *testing.T) {
	svc, payments, _, _, _ := newPaymentFixture()
	payments.payments = map[string]models.Payment{
		"p-done": {ID: "p-done", UserID: "u1", Status: models.PaymentCompleted, TransactionID: "COURSE_1", Amount: 499, Currency: "INR", Method: "UPI"},
		"p-init": {ID: "p-init", UserID: "u1", Status: models.PaymentInitiated, TransactionID: "COURSE_2"},
	}
	payments.transactions = map[string]models.PayuTransaction{
		"p-done": {PaymentID: "p-done", TxnID: "COURSE_1", FirstName: "Farm User", Email: "user@example.com", ProductInfo: "Drip Irrigation Basics"},
	}

	pdf, err := svc.Receipt(context.Background(), "u1", "p-done")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"), "receipt renders as a PDF document")

	_, err = svc.Receipt(context.Background(), "u2", "p-done")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Receipt(context.Background(), "u1", "p-init")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}
