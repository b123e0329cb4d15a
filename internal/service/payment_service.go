package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/agrisetu/agrisetu-api/internal/models"
	"github.com/agrisetu/agrisetu-api/internal/repository"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
	"github.com/agrisetu/agrisetu-api/pkg/export"
	"github.com/agrisetu/agrisetu-api/pkg/payu"
)

// ErrHashMismatch rejects a gateway callback whose signature does not
// verify. Callbacks carrying it must never mutate payment state.
var ErrHashMismatch = appErrors.New("HASH_MISMATCH", http.StatusBadRequest, "hash verification failed")

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment, txn *models.PayuTransaction) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByTransactionID(ctx context.Context, txnID string) (*models.Payment, error)
	Settle(ctx context.Context, paymentID string, status models.PaymentStatus, method string, txn *models.PayuTransaction) error
	ListByUser(ctx context.Context, userID string) ([]models.PaymentRecord, error)
	FindTransactionByPaymentID(ctx context.Context, paymentID string) (*models.PayuTransaction, error)
}

type paymentCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Enroll(ctx context.Context, enrollment *models.CourseEnrollment) error
}

type paymentConsultationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Consultation, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ConsultationStatus, meetLink string) error
}

type paymentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// InitiatePaymentRequest targets exactly one purchasable item.
type InitiatePaymentRequest struct {
	CourseID       string `json:"course_id"`
	ConsultationID string `json:"consultation_id"`
}

// GatewayParams are the form fields the client posts to the gateway.
type GatewayParams struct {
	Key         string `json:"key"`
	TxnID       string `json:"txnid"`
	Amount      string `json:"amount"`
	ProductInfo string `json:"productinfo"`
	FirstName   string `json:"firstname"`
	Email       string `json:"email"`
	SuccessURL  string `json:"surl"`
	FailureURL  string `json:"furl"`
	Hash        string `json:"hash"`
}

// InitiatePaymentResponse carries the gateway redirect target and params.
type InitiatePaymentResponse struct {
	PaymentID  string        `json:"payment_id"`
	PaymentURL string        `json:"payment_url"`
	Params     GatewayParams `json:"params"`
}

// GatewayCallback is the form payload PayU posts back after checkout.
type GatewayCallback struct {
	TxnID          string
	Amount         string
	ProductInfo    string
	FirstName      string
	Email          string
	Status         string
	Hash           string
	Mode           string
	UnmappedStatus string
	NetAmount      string
	ErrorCode      string
	ErrorMessage   string
}

// PaymentConfig wires the gateway credentials and callback URLs.
type PaymentConfig struct {
	Gateway    payu.Config
	SuccessURL string
	FailureURL string
}

// PaymentService owns the payment lifecycle against the PayU gateway.
type PaymentService struct {
	payments      paymentRepository
	courses       paymentCourseRepository
	consultations paymentConsultationRepository
	users         paymentUserRepository
	receipts      *export.ReceiptExporter
	validator     *validator.Validate
	logger        *zap.Logger
	config        PaymentConfig

	// now is swappable in tests so txnids are deterministic.
	now func() time.Time
}

// NewPaymentService constructs a PaymentService instance.
func NewPaymentService(payments paymentRepository, courses paymentCourseRepository, consultations paymentConsultationRepository, users paymentUserRepository, receipts *export.ReceiptExporter, validate *validator.Validate, logger *zap.Logger, config PaymentConfig) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if receipts == nil {
		receipts = export.NewReceiptExporter("")
	}
	return &PaymentService{
		payments:      payments,
		courses:       courses,
		consultations: consultations,
		users:         users,
		receipts:      receipts,
		validator:     validate,
		logger:        logger,
		config:        config,
		now:           time.Now,
	}
}

// Initiate resolves the price of the targeted item, builds the signed
// gateway request and persists the payment as INITIATED.
func (s *PaymentService) Initiate(ctx context.Context, userID string, req InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	target, err := models.ParsePaymentTarget(req.CourseID, req.ConsultationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	amount, productInfo, payment, err := s.resolveTarget(ctx, userID, target)
	if err != nil {
		return nil, err
	}

	txnID := fmt.Sprintf("%s_%d", target.TxnPrefix(), s.now().UnixMilli())
	amountStr := fmt.Sprintf("%.2f", amount)

	gatewayReq := payu.Request{
		TxnID:       txnID,
		Amount:      amountStr,
		ProductInfo: productInfo,
		FirstName:   user.FullName,
		Email:       user.Email,
	}
	hash := payu.GenerateHash(s.config.Gateway, gatewayReq)

	payment.UserID = userID
	payment.Amount = amount
	payment.Currency = "INR"
	payment.Status = models.PaymentInitiated
	payment.TransactionID = txnID

	txn := &models.PayuTransaction{
		TxnID:       txnID,
		Amount:      amountStr,
		ProductInfo: productInfo,
		FirstName:   user.FullName,
		Email:       user.Email,
		Status:      "initiated",
		Hash:        hash,
	}
	if err := s.payments.Create(ctx, payment, txn); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist payment")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionPaymentInitiate,
		Resource:   "payment",
		ResourceID: &payment.ID,
		NewValues:  []byte(fmt.Sprintf(`{"txnid":%q,"amount":%q}`, txnID, amountStr)),
	}); err != nil {
		s.logger.Warn("failed to record payment audit log", zap.Error(err))
	}

	return &InitiatePaymentResponse{
		PaymentID:  payment.ID,
		PaymentURL: s.config.Gateway.BaseURL,
		Params: GatewayParams{
			Key:         s.config.Gateway.MerchantKey,
			TxnID:       txnID,
			Amount:      amountStr,
			ProductInfo: productInfo,
			FirstName:   user.FullName,
			Email:       user.Email,
			SuccessURL:  s.config.SuccessURL,
			FailureURL:  s.config.FailureURL,
			Hash:        hash,
		},
	}, nil
}

// ConfirmSuccess settles a success callback. The hash is verified in the
// gateway's reverse field order before anything is mutated; a consultation
// payment also moves the consultation to APPROVED, a course payment enrolls
// the buyer.
func (s *PaymentService) ConfirmSuccess(ctx context.Context, cb GatewayCallback) error {
	verified := payu.VerifyHash(s.config.Gateway, payu.Request{
		TxnID:       cb.TxnID,
		Amount:      cb.Amount,
		ProductInfo: cb.ProductInfo,
		FirstName:   cb.FirstName,
		Email:       cb.Email,
	}, cb.Status, cb.Hash)
	if !verified {
		s.logger.Warn("success callback failed hash verification", zap.String("txnid", cb.TxnID))
		return appErrors.Clone(ErrHashMismatch, "")
	}

	payment, err := s.payments.FindByTransactionID(ctx, cb.TxnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	if err := s.payments.Settle(ctx, payment.ID, models.PaymentCompleted, cb.Mode, &models.PayuTransaction{
		Status:         cb.Status,
		UnmappedStatus: cb.UnmappedStatus,
		Mode:           cb.Mode,
		NetAmount:      cb.NetAmount,
		Hash:           cb.Hash,
	}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle payment")
	}

	target, err := payment.Target()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "payment has an inconsistent target")
	}

	switch target.Kind() {
	case models.TargetConsultation:
		if err := s.consultations.UpdateStatus(ctx, target.ID(), models.ConsultationPending, models.ConsultationApproved, ""); err != nil {
			// A repeated callback or an instructor approval racing the
			// gateway lands here; the payment itself stays settled.
			if errors.Is(err, repository.ErrStatusConflict) {
				s.logger.Info("consultation already left PENDING", zap.String("consultation_id", target.ID()))
			} else {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve consultation")
			}
		}
	case models.TargetCourse:
		if err := s.courses.Enroll(ctx, &models.CourseEnrollment{UserID: payment.UserID, CourseID: target.ID()}); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll buyer")
		}
	}

	s.auditSettlement(ctx, payment, models.PaymentCompleted)
	return nil
}

// ConfirmFailure settles a failure callback. PayU signs failure posts with
// the request hash rather than the response hash, so verification here uses
// the forward field order. The consultation, if any, stays PENDING.
func (s *PaymentService) ConfirmFailure(ctx context.Context, cb GatewayCallback) error {
	verified := payu.VerifyRequestHash(s.config.Gateway, payu.Request{
		TxnID:       cb.TxnID,
		Amount:      cb.Amount,
		ProductInfo: cb.ProductInfo,
		FirstName:   cb.FirstName,
		Email:       cb.Email,
	}, cb.Hash)
	if !verified {
		s.logger.Warn("failure callback failed hash verification", zap.String("txnid", cb.TxnID))
		return appErrors.Clone(ErrHashMismatch, "")
	}

	payment, err := s.payments.FindByTransactionID(ctx, cb.TxnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	if err := s.payments.Settle(ctx, payment.ID, models.PaymentFailed, cb.Mode, &models.PayuTransaction{
		Status:         cb.Status,
		UnmappedStatus: cb.UnmappedStatus,
		Mode:           cb.Mode,
		NetAmount:      cb.NetAmount,
		ErrorCode:      cb.ErrorCode,
		ErrorMessage:   cb.ErrorMessage,
		Hash:           cb.Hash,
	}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle payment")
	}

	s.auditSettlement(ctx, payment, models.PaymentFailed)
	return nil
}

// Records returns the caller's payment history.
func (s *PaymentService) Records(ctx context.Context, userID string) ([]models.PaymentRecord, error) {
	records, err := s.payments.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return records, nil
}

// Receipt renders a PDF receipt for the caller's own completed payment.
func (s *PaymentService) Receipt(ctx context.Context, userID, paymentID string) ([]byte, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another user")
	}
	if payment.Status != models.PaymentCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "receipt is only available for completed payments")
	}

	txn, err := s.payments.FindTransactionByPaymentID(ctx, payment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transaction")
	}

	pdf, err := s.receipts.Render(export.Receipt{
		TransactionID: payment.TransactionID,
		PaidAt:        payment.UpdatedAt,
		PayerName:     txn.FirstName,
		PayerEmail:    txn.Email,
		ProductInfo:   txn.ProductInfo,
		Method:        payment.Method,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return pdf, nil
}

func (s *PaymentService) resolveTarget(ctx context.Context, userID string, target models.PaymentTarget) (float64, string, *models.Payment, error) {
	switch target.Kind() {
	case models.TargetCourse:
		course, err := s.courses.FindByID(ctx, target.ID())
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, "", nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return 0, "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		courseID := course.ID
		return course.Price, course.Title, &models.Payment{CourseID: &courseID}, nil

	case models.TargetConsultation:
		consultation, err := s.consultations.FindByID(ctx, target.ID())
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, "", nil, appErrors.Clone(appErrors.ErrNotFound, "consultation not found")
			}
			return 0, "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consultation")
		}
		if consultation.UserID != userID {
			return 0, "", nil, appErrors.Clone(appErrors.ErrForbidden, "consultation belongs to another user")
		}
		consultationID := consultation.ID
		return consultation.Price, "Consultation booking", &models.Payment{ConsultationID: &consultationID}, nil
	}
	return 0, "", nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment target")
}

func (s *PaymentService) auditSettlement(ctx context.Context, payment *models.Payment, status models.PaymentStatus) {
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &payment.UserID,
		Action:     models.AuditActionPaymentSettle,
		Resource:   "payment",
		ResourceID: &payment.ID,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, status)),
	}); err != nil {
		s.logger.Warn("failed to record settlement audit log", zap.Error(err))
	}
}
