package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisetu/agrisetu-api/internal/models"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
)

type mockInstructorRepo struct {
	profiles  map[string]models.InstructorProfile
	slots     map[string][]models.AvailabilitySlot
	resources map[string][]models.FreeResource
}

func (m *mockInstructorRepo) FindProfileByID(_ context.Context, id string) (*models.InstructorProfile, error) {
	for _, p := range m.profiles {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockInstructorRepo) FindProfileByUserID(_ context.Context, userID string) (*models.InstructorProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (m *mockInstructorRepo) UpdateProfile(_ context.Context, profile *models.InstructorProfile) error {
	m.profiles[profile.UserID] = *profile
	return nil
}

func (m *mockInstructorRepo) ListProfiles(_ context.Context) ([]models.InstructorProfile, map[string]models.UserInfo, error) {
	var profiles []models.InstructorProfile
	users := make(map[string]models.UserInfo)
	for _, p := range m.profiles {
		profiles = append(profiles, p)
		users[p.UserID] = models.UserInfo{FullName: "Asha Patil", Email: "asha@example.com"}
	}
	return profiles, users, nil
}

func (m *mockInstructorRepo) ReplaceSlots(_ context.Context, instructorID string, slots []models.AvailabilitySlot) error {
	m.slots[instructorID] = slots
	return nil
}

func (m *mockInstructorRepo) FindSlots(_ context.Context, instructorID string) ([]models.AvailabilitySlot, error) {
	return m.slots[instructorID], nil
}

func (m *mockInstructorRepo) CreateFreeResource(_ context.Context, resource *models.FreeResource) error {
	if resource.ID == "" {
		resource.ID = "fr-new"
	}
	m.resources[resource.InstructorID] = append(m.resources[resource.InstructorID], *resource)
	return nil
}

func (m *mockInstructorRepo) ListFreeResources(_ context.Context, instructorID string) ([]models.FreeResource, error) {
	return m.resources[instructorID], nil
}

func newInstructorFixture() (*InstructorService, *mockInstructorRepo) {
	repo := &mockInstructorRepo{
		profiles: map[string]models.InstructorProfile{
			"instructor-user": {ID: "i1", UserID: "instructor-user", Bio: "Soil health", HourlyRate: 150},
		},
		slots:     map[string][]models.AvailabilitySlot{},
		resources: map[string][]models.FreeResource{},
	}
	return NewInstructorService(repo, nil, 0, nil, nil), repo
}

func TestShareFreeResource(t *testing.T) {
	svc, repo := newInstructorFixture()

	resource, err := svc.ShareFreeResource(context.Background(), "instructor-user", CreateFreeResourceRequest{
		Title:       "Drip irrigation primer",
		Description: "A short walkthrough of low-cost drip setups.",
		URL:         "https://example.com/drip-irrigation",
	})
	require.NoError(t, err)
	assert.Equal(t, "i1", resource.InstructorID)
	require.Len(t, repo.resources["i1"], 1)
}

func TestShareFreeResourceRejectsBadURL(t *testing.T) {
	svc, repo := newInstructorFixture()

	_, err := svc.ShareFreeResource(context.Background(), "instructor-user", CreateFreeResourceRequest{
		Title:       "Broken link",
		Description: "Not a URL at all.",
		URL:         "not-a-url",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.resources["i1"])
}

func TestFreeResourcesRequireProfile(t *testing.T) {
	svc, _ := newInstructorFixture()

	_, err := svc.FreeResources(context.Background(), "plain-user")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFreeResourcesListOwn(t *testing.T) {
	svc, repo := newInstructorFixture()
	repo.resources["i1"] = []models.FreeResource{
		{ID: "fr1", InstructorID: "i1", Title: "Composting basics", URL: "https://example.com/compost"},
	}

	resources, err := svc.FreeResources(context.Background(), "instructor-user")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "Composting basics", resources[0].Title)
}
