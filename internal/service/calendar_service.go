package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/agrisetu/agrisetu-api/internal/models"
	"github.com/agrisetu/agrisetu-api/pkg/config"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
)

// expiryBuffer is how long before actual token expiry we already treat a
// token as stale and refresh it, so a meeting insert never races the
// expiry moment.
const expiryBuffer = 5 * time.Minute

type credentialStore interface {
	Get(ctx context.Context, key string) (*models.ProviderCredential, error)
	Set(ctx context.Context, key, value string) error
}

// ReauthRequiredError signals that the stored Google grant is missing or
// dead and an admin must walk the consent flow again. AuthURL is where to
// send them.
type ReauthRequiredError struct {
	AuthURL string
}

func (e *ReauthRequiredError) Error() string {
	return "google calendar authorization required"
}

// MeetingRequest describes the calendar event to create.
type MeetingRequest struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// CalendarService creates Google Meet links for approved consultations.
// The Google grant is process-wide: one connected calendar account serves
// the whole deployment, stored as provider_credentials rows.
type CalendarService struct {
	creds  credentialStore
	oauth  *oauth2.Config
	logger *zap.Logger

	// mu serializes token refreshes so concurrent approvals do not race
	// each other into burning the same refresh token twice.
	mu sync.Mutex
}

// NewCalendarService constructs a CalendarService instance.
func NewCalendarService(creds credentialStore, cfg config.GoogleConfig, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{
		creds: creds,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarEventsScope},
		},
		logger: logger,
	}
}

// ConsentURL returns the Google consent page URL for (re)connecting the
// calendar account.
func (s *CalendarService) ConsentURL() string {
	return s.oauth.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// HandleCallback exchanges the consent code and persists the grant.
func (s *CalendarService) HandleCallback(ctx context.Context, code string) error {
	if code == "" {
		return appErrors.Clone(appErrors.ErrValidation, "missing authorization code")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "failed to exchange authorization code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistToken(ctx, token)
}

// CreateMeeting inserts a calendar event with a Google Meet conference and
// returns the meet link. A missing or unrefreshable grant surfaces as a
// ReauthRequiredError wrapped under REAUTH_REQUIRED.
func (s *CalendarService) CreateMeeting(ctx context.Context, req MeetingRequest) (string, error) {
	token, err := s.usableToken(ctx)
	if err != nil {
		return "", err
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "failed to build calendar client")
	}

	attendees := make([]*calendar.EventAttendee, 0, len(req.Attendees))
	for _, email := range req.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}

	event := &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       &calendar.EventDateTime{DateTime: req.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: req.End.Format(time.RFC3339)},
		Attendees:   attendees,
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}

	created, err := svc.Events.Insert("primary", event).ConferenceDataVersion(1).Context(ctx).Do()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "failed to create calendar event")
	}

	link := created.HangoutLink
	if link == "" && created.ConferenceData != nil {
		for _, entry := range created.ConferenceData.EntryPoints {
			if entry.EntryPointType == "video" {
				link = entry.Uri
				break
			}
		}
	}
	if link == "" {
		return "", appErrors.Clone(appErrors.ErrExternalService, "calendar event created without a meet link")
	}

	s.logger.Info("calendar event created",
		zap.String("event_id", created.Id),
		zap.Time("start", req.Start))

	return link, nil
}

// usableToken loads the stored grant and refreshes it when it is inside
// the expiry buffer. Refreshes are serialized by mu.
func (s *CalendarService) usableToken(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.loadToken(ctx)
	if err != nil {
		return nil, err
	}

	if time.Until(token.Expiry) > expiryBuffer {
		return token, nil
	}

	if token.RefreshToken == "" {
		return nil, s.reauth("stored grant has no refresh token")
	}

	refreshed, err := s.oauth.TokenSource(ctx, token).Token()
	if err != nil {
		s.logger.Warn("google token refresh failed", zap.Error(err))
		return nil, s.reauth("token refresh rejected")
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}

	if err := s.persistToken(ctx, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

func (s *CalendarService) loadToken(ctx context.Context) (*oauth2.Token, error) {
	access, err := s.creds.Get(ctx, models.CredentialGoogleAccessToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.reauth("calendar account not connected")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load google credentials")
	}

	token := &oauth2.Token{AccessToken: access.Value}

	if refresh, err := s.creds.Get(ctx, models.CredentialGoogleRefreshToken); err == nil {
		token.RefreshToken = refresh.Value
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load google credentials")
	}

	if expiry, err := s.creds.Get(ctx, models.CredentialGoogleTokenExpiry); err == nil {
		if ts, parseErr := time.Parse(time.RFC3339, expiry.Value); parseErr == nil {
			token.Expiry = ts
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load google credentials")
	}

	return token, nil
}

func (s *CalendarService) persistToken(ctx context.Context, token *oauth2.Token) error {
	if err := s.creds.Set(ctx, models.CredentialGoogleAccessToken, token.AccessToken); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist google credentials")
	}
	if token.RefreshToken != "" {
		if err := s.creds.Set(ctx, models.CredentialGoogleRefreshToken, token.RefreshToken); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist google credentials")
		}
	}
	if !token.Expiry.IsZero() {
		if err := s.creds.Set(ctx, models.CredentialGoogleTokenExpiry, token.Expiry.UTC().Format(time.RFC3339)); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist google credentials")
		}
	}
	return nil
}

func (s *CalendarService) reauth(reason string) error {
	err := &ReauthRequiredError{AuthURL: s.ConsentURL()}
	return appErrors.Wrap(err, appErrors.ErrReauthRequired.Code, appErrors.ErrReauthRequired.Status, fmt.Sprintf("google calendar reauthorization required: %s", reason))
}
