package models

import (
	"fmt"
	"time"
)

// PaymentStatus is the settlement state of a payment record.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// PaymentTargetKind discriminates what a payment pays for.
type PaymentTargetKind string

const (
	TargetCourse       PaymentTargetKind = "COURSE"
	TargetConsultation PaymentTargetKind = "CONSULTATION"
)

// PaymentTarget is a tagged union: exactly one of a course or a
// consultation. Construct it through NewCourseTarget / NewConsultationTarget
// or ParsePaymentTarget so the exactly-one rule holds by construction.
type PaymentTarget struct {
	kind PaymentTargetKind
	id   string
}

// NewCourseTarget builds a target paying for a course.
func NewCourseTarget(courseID string) PaymentTarget {
	return PaymentTarget{kind: TargetCourse, id: courseID}
}

// NewConsultationTarget builds a target paying for a consultation.
func NewConsultationTarget(consultationID string) PaymentTarget {
	return PaymentTarget{kind: TargetConsultation, id: consultationID}
}

// ParsePaymentTarget validates the exactly-one rule on raw request fields.
func ParsePaymentTarget(courseID, consultationID string) (PaymentTarget, error) {
	switch {
	case courseID != "" && consultationID != "":
		return PaymentTarget{}, fmt.Errorf("provide either course_id or consultation_id, not both")
	case courseID != "":
		return NewCourseTarget(courseID), nil
	case consultationID != "":
		return NewConsultationTarget(consultationID), nil
	default:
		return PaymentTarget{}, fmt.Errorf("provide course_id or consultation_id")
	}
}

// Kind returns the discriminant.
func (t PaymentTarget) Kind() PaymentTargetKind { return t.kind }

// ID returns the target record id.
func (t PaymentTarget) ID() string { return t.id }

// TxnPrefix is the transaction-id prefix for this target kind.
func (t PaymentTarget) TxnPrefix() string { return string(t.kind) }

// Payment is a money movement against a course or a consultation.
type Payment struct {
	ID             string        `db:"id" json:"id"`
	UserID         string        `db:"user_id" json:"user_id"`
	CourseID       *string       `db:"course_id" json:"course_id,omitempty"`
	ConsultationID *string       `db:"consultation_id" json:"consultation_id,omitempty"`
	Amount         float64       `db:"amount" json:"amount"`
	Currency       string        `db:"currency" json:"currency"`
	Status         PaymentStatus `db:"status" json:"status"`
	Method         string        `db:"method" json:"method,omitempty"`
	TransactionID  string        `db:"transaction_id" json:"transaction_id"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Target reconstructs the tagged union from the persisted columns.
func (p *Payment) Target() (PaymentTarget, error) {
	course, consultation := "", ""
	if p.CourseID != nil {
		course = *p.CourseID
	}
	if p.ConsultationID != nil {
		consultation = *p.ConsultationID
	}
	return ParsePaymentTarget(course, consultation)
}

// PayuTransaction mirrors the gateway's view of one transaction.
type PayuTransaction struct {
	ID             string    `db:"id" json:"id"`
	PaymentID      string    `db:"payment_id" json:"payment_id"`
	TxnID          string    `db:"txnid" json:"txnid"`
	Amount         string    `db:"amount" json:"amount"`
	ProductInfo    string    `db:"productinfo" json:"productinfo"`
	FirstName      string    `db:"firstname" json:"firstname"`
	Email          string    `db:"email" json:"email"`
	Status         string    `db:"status" json:"status"`
	UnmappedStatus string    `db:"unmapped_status" json:"unmapped_status,omitempty"`
	Mode           string    `db:"mode" json:"mode,omitempty"`
	NetAmount      string    `db:"net_amount" json:"net_amount,omitempty"`
	ErrorCode      string    `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage   string    `db:"error_message" json:"error_message,omitempty"`
	Hash           string    `db:"hash" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// PaymentRecord joins a payment with what it paid for, for history listings.
type PaymentRecord struct {
	Payment
	ItemTitle string `db:"item_title" json:"item_title"`
}
