package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisetu/agrisetu-api/internal/middleware"
	"github.com/agrisetu/agrisetu-api/internal/models"
	"github.com/agrisetu/agrisetu-api/internal/service"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
)

func (f *fakeConsultationRepo) Create(ctx context.Context, c *models.Consultation) error {
	if c.ID == "" {
		c.ID = "cons-new"
	}
	f.consultations[c.ID] = *c
	return nil
}

func (f *fakeConsultationRepo) ListByUser(ctx context.Context, userID string) ([]models.ConsultationDetail, error) {
	return nil, nil
}

func (f *fakeConsultationRepo) ListByInstructor(ctx context.Context, instructorID string) ([]models.ConsultationDetail, error) {
	return nil, nil
}

type fakeInstructorRepo struct {
	profiles map[string]models.InstructorProfile
	slots    []models.AvailabilitySlot
}

func (f *fakeInstructorRepo) FindProfileByID(ctx context.Context, id string) (*models.InstructorProfile, error) {
	if p, ok := f.profiles[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInstructorRepo) FindProfileByUserID(ctx context.Context, userID string) (*models.InstructorProfile, error) {
	for _, p := range f.profiles {
		if p.UserID == userID {
			profile := p
			return &profile, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInstructorRepo) FindSlots(ctx context.Context, instructorID string) ([]models.AvailabilitySlot, error) {
	return f.slots, nil
}

type fakeMeeting struct {
	link string
	err  error
}

func (f *fakeMeeting) CreateMeeting(ctx context.Context, req service.MeetingRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.link, nil
}

func newConsultationHandlerFixture(meeting *fakeMeeting) (*ConsultationHandler, *fakeConsultationRepo) {
	consultations := &fakeConsultationRepo{consultations: map[string]models.Consultation{}}
	instructors := &fakeInstructorRepo{
		profiles: map[string]models.InstructorProfile{
			"i1": {ID: "i1", UserID: "instructor-user", HourlyRate: 200},
		},
		slots: weeklySlots(),
	}
	svc := service.NewConsultationService(consultations, instructors, &fakeUserRepo{}, meeting, nil, nil)
	return NewConsultationHandler(svc), consultations
}

// weeklySlots declares availability on every weekday so bookings in tests
// never depend on the day they run.
func weeklySlots() []models.AvailabilitySlot {
	slots := make([]models.AvailabilitySlot, 0, 7)
	for day := 0; day < 7; day++ {
		slots = append(slots, models.AvailabilitySlot{InstructorID: "i1", DayOfWeek: day, StartTime: "00:00", EndTime: "23:59"})
	}
	return slots
}

func authedJSONRequest(claims *models.JWTClaims, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func TestConsultationBookCreated(t *testing.T) {
	handler, repo := newConsultationHandlerFixture(&fakeMeeting{})

	scheduled := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	body, _ := json.Marshal(map[string]interface{}{
		"instructor_id":  "i1",
		"scheduled_at":   scheduled.Format(time.RFC3339),
		"duration_hours": 2,
	})
	c, rec := authedJSONRequest(&models.JWTClaims{UserID: "u1", Role: models.RoleUser}, http.MethodPost, "/consultations", string(body))

	handler.Book(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	created := repo.consultations["cons-new"]
	assert.Equal(t, models.ConsultationPending, created.Status)
	assert.Equal(t, 400.0, created.Price)
}

func TestConsultationBookRequiresAuth(t *testing.T) {
	handler, _ := newConsultationHandlerFixture(&fakeMeeting{})

	c, rec := authedJSONRequest(nil, http.MethodPost, "/consultations", "{}")
	handler.Book(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConsultationApproveAttachesLink(t *testing.T) {
	handler, repo := newConsultationHandlerFixture(&fakeMeeting{link: "https://meet.google.com/abc-defg-hij"})
	repo.consultations["cons-1"] = models.Consultation{ID: "cons-1", UserID: "u1", InstructorID: "i1", Status: models.ConsultationPending}

	c, rec := authedJSONRequest(&models.JWTClaims{UserID: "instructor-user", Role: models.RoleInstructor}, http.MethodPost, "/consultations/cons-1/approve", "")
	c.Params = gin.Params{{Key: "id", Value: "cons-1"}}

	handler.Approve(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ConsultationApproved, repo.consultations["cons-1"].Status)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", repo.consultations["cons-1"].MeetLink)
}

func TestConsultationApproveSurfacesReauthURL(t *testing.T) {
	reauthErr := appErrors.Wrap(
		&service.ReauthRequiredError{AuthURL: "https://accounts.google.com/o/oauth2/auth?state=state"},
		appErrors.ErrReauthRequired.Code, appErrors.ErrReauthRequired.Status, "google calendar reauthorization required",
	)
	handler, repo := newConsultationHandlerFixture(&fakeMeeting{err: reauthErr})
	repo.consultations["cons-1"] = models.Consultation{ID: "cons-1", UserID: "u1", InstructorID: "i1", Status: models.ConsultationPending}

	c, rec := authedJSONRequest(&models.JWTClaims{UserID: "instructor-user", Role: models.RoleInstructor}, http.MethodPost, "/consultations/cons-1/approve", "")
	c.Params = gin.Params{{Key: "id", Value: "cons-1"}}

	handler.Approve(c)

	assert.Equal(t, appErrors.ErrReauthRequired.Status, rec.Code)

	var payload struct {
		AuthURL string `json:"auth_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload.AuthURL, "accounts.google.com")
	assert.Equal(t, models.ConsultationPending, repo.consultations["cons-1"].Status, "approval never lands without a meeting")
}
