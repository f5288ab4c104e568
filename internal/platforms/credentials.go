package platforms

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/crosspost/internal/common"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// notBlank rejects values that are empty after trimming whitespace.
var notBlank = validation.By(func(v any) error {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

// decodeCredentials unmarshals raw into dst and validates it. Errors wrap
// common.ErrValidation.
func decodeCredentials(raw json.RawMessage, dst validation.Validatable) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing credentials", common.ErrValidation)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed credentials: %v", common.ErrValidation, err)
	}
	if err := dst.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

// XCredentials supports two shapes: OAuth 1.0a user context (all four keys)
// or an OAuth 2.0 user access token alone (quick connect).
type XCredentials struct {
	APIKey            string `json:"apiKey,omitempty"`
	APISecret         string `json:"apiSecret,omitempty"`
	AccessToken       string `json:"accessToken"`
	AccessTokenSecret string `json:"accessTokenSecret,omitempty"`
	RefreshToken      string `json:"refreshToken,omitempty"`
	ExpiresAt         int64  `json:"expiresAt,omitempty"`
}

// OAuth2 reports whether only a bearer user token is present.
func (c XCredentials) OAuth2() bool {
	return strings.TrimSpace(c.AccessToken) != "" && strings.TrimSpace(c.APIKey) == ""
}

func (c XCredentials) Validate() error {
	if c.OAuth2() {
		return nil
	}
	err := validation.ValidateStruct(&c,
		validation.Field(&c.APIKey, notBlank),
		validation.Field(&c.APISecret, notBlank),
		validation.Field(&c.AccessToken, notBlank),
		validation.Field(&c.AccessTokenSecret, notBlank),
	)
	if err != nil {
		return fmt.Errorf("X requires API Key, API Secret, Access Token and Access Token Secret (or an OAuth 2.0 access token only): %w", err)
	}
	return nil
}

type MastodonCredentials struct {
	InstanceURL string `json:"instanceUrl"`
	AccessToken string `json:"accessToken"`
}

func (c MastodonCredentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.InstanceURL, notBlank, is.URL),
		validation.Field(&c.AccessToken, notBlank),
	)
}

// BaseURL is the instance URL without a trailing slash.
func (c MastodonCredentials) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(c.InstanceURL), "/")
}

type BlueskyCredentials struct {
	Handle      string `json:"handle"`
	AppPassword string `json:"appPassword"`
	// Service overrides the PDS host; empty means bsky.social.
	Service string `json:"service,omitempty"`
}

func (c BlueskyCredentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Handle, notBlank),
		validation.Field(&c.AppPassword, notBlank),
		validation.Field(&c.Service, is.URL),
	)
}

// NostrCredentials holds either a NIP-46 bunker URI (plus the client secret
// generated at connect time) or a local nsec key. Relays is newline separated.
type NostrCredentials struct {
	BunkerURI    string `json:"bunkerUri,omitempty"`
	Nsec         string `json:"nsec,omitempty"`
	Relays       string `json:"relays,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// UsesBunker reports whether the remote signer mode is selected.
func (c NostrCredentials) UsesBunker() bool {
	return strings.TrimSpace(c.BunkerURI) != ""
}

func (c NostrCredentials) Validate() error {
	if !c.UsesBunker() && strings.TrimSpace(c.Nsec) == "" {
		return errors.New("enter Bunker URI or nsec")
	}
	return nil
}

type FacebookCredentials struct {
	PageAccessToken string `json:"pageAccessToken"`
	PageID          string `json:"pageId"`
}

func (c FacebookCredentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PageAccessToken, notBlank),
		validation.Field(&c.PageID, notBlank),
	)
}

type LinkedInCredentials struct {
	AccessToken string `json:"accessToken"`
}

func (c LinkedInCredentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AccessToken, notBlank),
	)
}

type InstagramCredentials struct {
	PageAccessToken            string `json:"pageAccessToken"`
	PageID                     string `json:"pageId"`
	InstagramBusinessAccountID string `json:"instagramBusinessAccountId"`
}

func (c InstagramCredentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PageAccessToken, notBlank),
		validation.Field(&c.PageID, notBlank),
		validation.Field(&c.InstagramBusinessAccountID, notBlank),
	)
}
