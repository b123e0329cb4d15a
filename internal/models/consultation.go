package models

import (
	"fmt"
	"time"
)

// ConsultationStatus is the lifecycle state of a booked consultation.
type ConsultationStatus string

const (
	ConsultationPending    ConsultationStatus = "PENDING"
	ConsultationApproved   ConsultationStatus = "APPROVED"
	ConsultationRejected   ConsultationStatus = "REJECTED"
	ConsultationInProgress ConsultationStatus = "IN_PROGRESS"
	ConsultationCompleted  ConsultationStatus = "COMPLETED"
	ConsultationCancelled  ConsultationStatus = "CANCELLED"
)

// ConsultationEvent names a lifecycle transition request.
type ConsultationEvent string

const (
	EventApprove  ConsultationEvent = "APPROVE"
	EventReject   ConsultationEvent = "REJECT"
	EventStart    ConsultationEvent = "START"
	EventComplete ConsultationEvent = "COMPLETE"
	EventCancel   ConsultationEvent = "CANCEL"
)

// consultationTransitions is the full transition table. Anything absent
// is an invalid transition. REJECTED, COMPLETED and CANCELLED are terminal.
var consultationTransitions = map[ConsultationStatus]map[ConsultationEvent]ConsultationStatus{
	ConsultationPending: {
		EventApprove: ConsultationApproved,
		EventReject:  ConsultationRejected,
		EventCancel:  ConsultationCancelled,
	},
	ConsultationApproved: {
		EventStart:  ConsultationInProgress,
		EventCancel: ConsultationCancelled,
	},
	ConsultationInProgress: {
		EventComplete: ConsultationCompleted,
	},
}

// ApplyEvent returns the state reached by applying event to current, or an
// error when the transition table has no such edge.
func ApplyEvent(current ConsultationStatus, event ConsultationEvent) (ConsultationStatus, error) {
	if next, ok := consultationTransitions[current][event]; ok {
		return next, nil
	}
	return current, fmt.Errorf("cannot %s a consultation in state %s", event, current)
}

// Consultation is a paid one-on-one session between a user and an instructor.
type Consultation struct {
	ID            string             `db:"id" json:"id"`
	UserID        string             `db:"user_id" json:"user_id"`
	InstructorID  string             `db:"instructor_id" json:"instructor_id"`
	ScheduledAt   time.Time          `db:"scheduled_at" json:"scheduled_at"`
	DurationHours int                `db:"duration_hours" json:"duration_hours"`
	Price         float64            `db:"price" json:"price"`
	Notes         string             `db:"notes" json:"notes"`
	Status        ConsultationStatus `db:"status" json:"status"`
	MeetLink      string             `db:"meet_link" json:"meet_link,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// ConsultationDetail joins a consultation with counterparty and payment info
// for the user and instructor listings.
type ConsultationDetail struct {
	Consultation
	CounterpartyName  string  `db:"counterparty_name" json:"counterparty_name"`
	CounterpartyEmail string  `db:"counterparty_email" json:"counterparty_email"`
	PaymentStatus     *string `db:"payment_status" json:"payment_status,omitempty"`
}
