package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// MastodonPublisher talks to any Mastodon-compatible instance. Media goes
// through /api/v1/media first, then the status references the returned ids.
type MastodonPublisher struct {
	rc *resty.Client
}

func NewMastodonPublisher(hc *http.Client) *MastodonPublisher {
	return &MastodonPublisher{rc: resty.NewWithClient(hc)}
}

func (p *MastodonPublisher) ValidateCredentials(raw json.RawMessage) error {
	var c MastodonCredentials
	return decodeCredentials(raw, &c)
}

func (p *MastodonPublisher) TestConnection(ctx context.Context, raw json.RawMessage) TestResult {
	var c MastodonCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return testFailed(err)
	}
	base := c.BaseURL()

	var acct struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
	}
	resp, err := p.rc.R().
		SetContext(ctx).
		SetAuthToken(c.AccessToken).
		SetResult(&acct).
		Get(base + "/api/v1/accounts/verify_credentials")
	if err := check("Mastodon API error", resp, err); err != nil {
		return testFailed(err)
	}

	name := "Mastodon"
	if acct.Username != "" {
		host := base
		if u, err := url.Parse(base); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}
		name = "@" + acct.Username + "@" + host
	}
	return TestResult{Success: true, DisplayName: name}
}

func (p *MastodonPublisher) Publish(ctx context.Context, post Post, raw json.RawMessage) PublishResult {
	var c MastodonCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return publishFailed("%v", err)
	}
	base := c.BaseURL()

	var mediaIDs []string
	for _, path := range limitMedia(post.Media, 4) {
		id, err := p.uploadMedia(ctx, base, c.AccessToken, path)
		if err != nil {
			return publishFailed("%v", err)
		}
		mediaIDs = append(mediaIDs, id)
	}

	body := map[string]any{"status": post.Text}
	if len(mediaIDs) > 0 {
		body["media_ids"] = mediaIDs
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	resp, err := p.rc.R().
		SetContext(ctx).
		SetAuthToken(c.AccessToken).
		SetBody(body).
		SetResult(&out).
		Post(base + "/api/v1/statuses")
	if err := check("Mastodon post failed", resp, err); err != nil {
		return publishFailed("%v", err)
	}
	return published(out.ID, out.URL)
}

func (p *MastodonPublisher) uploadMedia(ctx context.Context, base, token, path string) (string, error) {
	f, err := loadMedia(path)
	if err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	resp, err := p.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetMultipartField("file", f.Name, f.MIMEType, bytes.NewReader(f.Data)).
		SetResult(&out).
		Post(base + "/api/v1/media")
	if err := check("Mastodon media upload failed", resp, err); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("Mastodon media response missing id")
	}
	return out.ID, nil
}
