package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentTarget(t *testing.T) {
	target, err := ParsePaymentTarget("course-1", "")
	require.NoError(t, err)
	assert.Equal(t, TargetCourse, target.Kind())
	assert.Equal(t, "course-1", target.ID())
	assert.Equal(t, "COURSE", target.TxnPrefix())

	target, err = ParsePaymentTarget("", "cons-1")
	require.NoError(t, err)
	assert.Equal(t, TargetConsultation, target.Kind())
	assert.Equal(t, "CONSULTATION", target.TxnPrefix())

	_, err = ParsePaymentTarget("course-1", "cons-1")
	assert.Error(t, err, "both targets set must be rejected")

	_, err = ParsePaymentTarget("", "")
	assert.Error(t, err, "no target set must be rejected")
}

func TestPaymentTargetRoundTrip(t *testing.T) {
	course := "course-1"
	p := Payment{CourseID: &course}
	target, err := p.Target()
	require.NoError(t, err)
	assert.Equal(t, TargetCourse, target.Kind())

	bad := Payment{CourseID: &course, ConsultationID: &course}
	_, err = bad.Target()
	assert.Error(t, err)
}
