package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const blueskyService = "https://bsky.social"

// BlueskyPublisher speaks AT Protocol XRPC: app-password session, blob
// upload, then an app.bsky.feed.post record.
type BlueskyPublisher struct {
	rc      *resty.Client
	service string
	now     func() time.Time
}

func NewBlueskyPublisher(hc *http.Client) *BlueskyPublisher {
	return &BlueskyPublisher{rc: resty.NewWithClient(hc), service: blueskyService, now: time.Now}
}

type blueskySession struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

func (p *BlueskyPublisher) ValidateCredentials(raw json.RawMessage) error {
	var c BlueskyCredentials
	return decodeCredentials(raw, &c)
}

func (p *BlueskyPublisher) serviceURL(c BlueskyCredentials) string {
	if s := strings.TrimSpace(c.Service); s != "" {
		return strings.TrimRight(s, "/")
	}
	return p.service
}

func (p *BlueskyPublisher) login(ctx context.Context, service string, c BlueskyCredentials) (*blueskySession, error) {
	var s blueskySession
	resp, err := p.rc.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"identifier": strings.TrimSpace(c.Handle),
			"password":   strings.TrimSpace(c.AppPassword),
		}).
		SetResult(&s).
		Post(service + "/xrpc/com.atproto.server.createSession")
	if err := check("Bluesky login failed", resp, err); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *BlueskyPublisher) TestConnection(ctx context.Context, raw json.RawMessage) TestResult {
	var c BlueskyCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return testFailed(err)
	}
	service := p.serviceURL(c)
	handle := strings.TrimSpace(c.Handle)

	s, err := p.login(ctx, service, c)
	if err != nil {
		return testFailed(err)
	}

	var profile struct {
		DisplayName string `json:"displayName"`
	}
	resp, err := p.rc.R().
		SetContext(ctx).
		SetAuthToken(s.AccessJwt).
		SetQueryParam("actor", handle).
		SetResult(&profile).
		Get(service + "/xrpc/app.bsky.actor.getProfile")
	if err := check("Bluesky profile lookup failed", resp, err); err != nil {
		return testFailed(err)
	}

	name := "@" + handle
	if profile.DisplayName != "" {
		name = profile.DisplayName + " (@" + handle + ")"
	}
	return TestResult{Success: true, DisplayName: name}
}

func (p *BlueskyPublisher) Publish(ctx context.Context, post Post, raw json.RawMessage) PublishResult {
	var c BlueskyCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return publishFailed("%v", err)
	}
	service := p.serviceURL(c)
	handle := strings.TrimSpace(c.Handle)

	s, err := p.login(ctx, service, c)
	if err != nil {
		return publishFailed("%v", err)
	}

	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      post.Text,
		"createdAt": p.now().UTC().Format(time.RFC3339),
	}

	if media := limitMedia(post.Media, 4); len(media) > 0 {
		images := make([]map[string]any, 0, len(media))
		for _, path := range media {
			blob, err := p.uploadBlob(ctx, service, s.AccessJwt, path)
			if err != nil {
				return publishFailed("%v", err)
			}
			images = append(images, map[string]any{"image": blob, "alt": ""})
		}
		record["embed"] = map[string]any{
			"$type":  "app.bsky.embed.images",
			"images": images,
		}
	}

	var out struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	resp, err := p.rc.R().
		SetContext(ctx).
		SetAuthToken(s.AccessJwt).
		SetBody(map[string]any{
			"repo":       s.DID,
			"collection": "app.bsky.feed.post",
			"record":     record,
		}).
		SetResult(&out).
		Post(service + "/xrpc/com.atproto.repo.createRecord")
	if err := check("Bluesky post failed", resp, err); err != nil {
		return publishFailed("%v", err)
	}

	rkey := out.URI
	if i := strings.LastIndex(out.URI, "/"); i >= 0 {
		rkey = out.URI[i+1:]
	}
	return published(rkey, "https://bsky.app/profile/"+url.PathEscape(handle)+"/post/"+rkey)
}

// uploadBlob returns the blob reference exactly as the PDS described it.
func (p *BlueskyPublisher) uploadBlob(ctx context.Context, service, token, path string) (json.RawMessage, error) {
	f, err := loadMedia(path)
	if err != nil {
		return nil, err
	}

	var out struct {
		Blob json.RawMessage `json:"blob"`
	}
	resp, err := p.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", f.MIMEType).
		SetBody(f.Data).
		SetResult(&out).
		Post(service + "/xrpc/com.atproto.repo.uploadBlob")
	if err := check("Bluesky blob upload failed", resp, err); err != nil {
		return nil, err
	}
	return out.Blob, nil
}
