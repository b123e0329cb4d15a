package models

import "time"

// Keys for provider_credentials rows holding the process-wide Google
// Calendar grant.
const (
	CredentialGoogleAccessToken  = "GOOGLE_ACCESS_TOKEN"
	CredentialGoogleRefreshToken = "GOOGLE_REFRESH_TOKEN"
	CredentialGoogleTokenExpiry  = "GOOGLE_TOKEN_EXPIRY"
)

// ProviderCredential is one key/value secret persisted for an external
// provider integration.
type ProviderCredential struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
