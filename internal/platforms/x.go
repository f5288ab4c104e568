package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

const (
	xAPIBase    = "https://api.twitter.com"
	xUploadBase = "https://upload.twitter.com"
)

// XPublisher posts through the v2 tweets endpoint, uploading media through
// the v1.1 media endpoint first. Requests are signed with OAuth 1.0a or sent
// with an OAuth 2.0 bearer token depending on the credential shape.
type XPublisher struct {
	base       *http.Client
	apiBase    string
	uploadBase string
}

func NewXPublisher(hc *http.Client) *XPublisher {
	return &XPublisher{base: hc, apiBase: xAPIBase, uploadBase: xUploadBase}
}

func (p *XPublisher) ValidateCredentials(raw json.RawMessage) error {
	var c XCredentials
	return decodeCredentials(raw, &c)
}

func (p *XPublisher) client(ctx context.Context, c XCredentials) *resty.Client {
	var hc *http.Client
	if c.OAuth2() {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.base)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.AccessToken, TokenType: "Bearer"}))
	} else {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, p.base)
		cfg := oauth1.NewConfig(c.APIKey, c.APISecret)
		hc = cfg.Client(ctx, oauth1.NewToken(c.AccessToken, c.AccessTokenSecret))
	}
	return resty.NewWithClient(hc)
}

func (p *XPublisher) TestConnection(ctx context.Context, raw json.RawMessage) TestResult {
	var c XCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return testFailed(err)
	}

	var me struct {
		Data struct {
			Username string `json:"username"`
		} `json:"data"`
	}
	resp, err := p.client(ctx, c).R().
		SetContext(ctx).
		SetResult(&me).
		Get(p.apiBase + "/2/users/me")
	if err := check("X API error", resp, err); err != nil {
		return testFailed(err)
	}

	name := "X (Twitter)"
	if me.Data.Username != "" {
		name = "@" + me.Data.Username
	}
	return TestResult{Success: true, DisplayName: name}
}

func (p *XPublisher) Publish(ctx context.Context, post Post, raw json.RawMessage) PublishResult {
	var c XCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return publishFailed("%v", err)
	}
	rc := p.client(ctx, c)

	var mediaIDs []string
	for _, path := range limitMedia(post.Media, 4) {
		id, err := p.uploadMedia(ctx, rc, path)
		if err != nil {
			return publishFailed("%v", err)
		}
		mediaIDs = append(mediaIDs, id)
	}

	body := map[string]any{"text": post.Text}
	if len(mediaIDs) > 0 {
		body["media"] = map[string]any{"media_ids": mediaIDs}
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	resp, err := rc.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(p.apiBase + "/2/tweets")
	if err := check("X post failed", resp, err); err != nil {
		return publishFailed("%v", err)
	}

	url := ""
	if out.Data.ID != "" {
		url = "https://x.com/i/status/" + out.Data.ID
	}
	return published(out.Data.ID, url)
}

func (p *XPublisher) uploadMedia(ctx context.Context, rc *resty.Client, path string) (string, error) {
	f, err := loadMedia(path)
	if err != nil {
		return "", err
	}

	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	resp, err := rc.R().
		SetContext(ctx).
		SetMultipartField("media", f.Name, f.MIMEType, bytes.NewReader(f.Data)).
		SetResult(&out).
		Post(p.uploadBase + "/1.1/media/upload.json")
	if err := check("X media upload failed", resp, err); err != nil {
		return "", err
	}
	if out.MediaIDString == "" {
		return "", errors.New("X media upload response missing media_id_string")
	}
	return out.MediaIDString, nil
}
