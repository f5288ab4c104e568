// Package quickconnect implements app-mediated OAuth for platforms where the
// operator registered an application, so users can connect without creating
// their own API keys.
package quickconnect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/dmitrijs2005/crosspost/internal/platforms"
	"github.com/dmitrijs2005/crosspost/internal/server/services"
	"golang.org/x/oauth2"
)

const (
	xAuthURL  = "https://twitter.com/i/oauth2/authorize"
	xTokenURL = "https://api.twitter.com/2/oauth2/token"

	// CallbackPath is where the platform redirects after consent.
	CallbackPath = "/api/oauth/x/callback"

	stateTTL = 10 * time.Minute
)

var xScopes = []string{"tweet.read", "users.read", "tweet.write", "offline.access"}

// Callback outcomes, reported to the settings page as ?oauth=<outcome>.
const (
	OutcomeSuccess     = "success"
	OutcomeDenied      = "denied"
	OutcomeInvalid     = "invalid"
	OutcomeExpired     = "expired"
	OutcomeConfig      = "config"
	OutcomeTokenFailed = "token_failed"
)

var (
	// ErrNotImplemented is returned for quick-connect platforms whose OAuth
	// flow does not exist yet.
	ErrNotImplemented = errors.New("OAuth not implemented for this platform yet. Use Advanced and your own API keys.")

	errNotConfigured = fmt.Errorf("%w: Quick Connect is not configured.", common.ErrConfiguration)
)

type connectionSaver interface {
	SaveQuickConnect(ctx context.Context, userID string, brandID *string, platform string, creds json.RawMessage) (*services.ConnectionView, error)
}

type Options struct {
	ClientID     string
	ClientSecret string
	// BaseURL is the public origin of this server, used for the redirect URI.
	BaseURL string

	// AuthURL and TokenURL override the X endpoints.
	AuthURL  string
	TokenURL string

	HTTPClient *http.Client
}

// Service runs the authorize and callback halves of the flow.
type Service struct {
	oauth  *oauth2.Config
	hc     *http.Client
	saver  connectionSaver
	states *stateStore
	log    logging.Logger
}

func New(opts Options, saver connectionSaver, log logging.Logger) *Service {
	s := &Service{
		hc:     opts.HTTPClient,
		saver:  saver,
		states: newStateStore(stateTTL),
		log:    log.With("module", "quickconnect"),
	}
	if s.hc == nil {
		s.hc = http.DefaultClient
	}

	if opts.ClientID == "" || opts.ClientSecret == "" {
		return s
	}

	authURL, tokenURL := opts.AuthURL, opts.TokenURL
	if authURL == "" {
		authURL = xAuthURL
	}
	if tokenURL == "" {
		tokenURL = xTokenURL
	}
	s.oauth = &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  strings.TrimRight(opts.BaseURL, "/") + CallbackPath,
		Scopes:       xScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	return s
}

// Configured reports whether client credentials were supplied.
func (s *Service) Configured() bool {
	return s.oauth != nil
}

type statePayload struct {
	R string `json:"r"`
	B string `json:"b"`
}

// AuthorizeURL starts a flow for userID and returns the consent page URL.
// brandID may be empty.
func (s *Service) AuthorizeURL(userID, platform, brandID string) (string, error) {
	platform = strings.ToLower(platform)
	meta, ok := platforms.Describe(platform)
	if !ok || !meta.QuickConnect {
		return "", fmt.Errorf("%w: Unsupported platform for Quick Connect", common.ErrValidation)
	}
	if platform != platforms.X {
		return "", ErrNotImplemented
	}
	if s.oauth == nil {
		return "", errNotConfigured
	}

	nonce, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(statePayload{R: nonce, B: brandID})
	if err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(raw)

	verifier := oauth2.GenerateVerifier()
	s.states.put(state, pendingAuth{userID: userID, brandID: brandID, verifier: verifier})

	return s.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// CallbackParams are the query parameters the platform redirects with.
type CallbackParams struct {
	Code  string
	State string
	Error string
}

// Callback completes a flow for the user who started it; the platform's
// redirect carries no bearer token, so the user comes from the stored state.
// The outcome is always set; err is non-nil only when the connection could
// not be stored.
func (s *Service) Callback(ctx context.Context, p CallbackParams) (string, error) {
	if p.Error != "" {
		s.states.take(p.State)
		return OutcomeDenied, nil
	}
	if p.Code == "" || p.State == "" {
		return OutcomeInvalid, nil
	}

	pending, ok := s.states.take(p.State)
	if !ok {
		return OutcomeExpired, nil
	}
	if s.oauth == nil {
		return OutcomeConfig, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.hc)
	tok, err := s.oauth.Exchange(ctx, p.Code, oauth2.VerifierOption(pending.verifier))
	if err != nil || tok.AccessToken == "" {
		s.log.Warn(ctx, "x token exchange failed", "error", err)
		return OutcomeTokenFailed, nil
	}

	creds := platforms.XCredentials{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		creds.ExpiresAt = tok.Expiry.UnixMilli()
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		return OutcomeTokenFailed, err
	}
	defer common.WipeByteArray(raw)

	var brandID *string
	if pending.brandID != "" {
		b := pending.brandID
		brandID = &b
	}
	if _, err := s.saver.SaveQuickConnect(ctx, pending.userID, brandID, platforms.X, raw); err != nil {
		return OutcomeTokenFailed, err
	}
	return OutcomeSuccess, nil
}
