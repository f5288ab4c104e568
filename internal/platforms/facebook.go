package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

const facebookGraphBase = "https://graph.facebook.com/v19.0"

// FacebookPublisher posts text to a Page feed through the Graph API using a
// page access token. Attachments are not sent.
type FacebookPublisher struct {
	rc        *resty.Client
	graphBase string
}

func NewFacebookPublisher(hc *http.Client) *FacebookPublisher {
	return &FacebookPublisher{rc: resty.NewWithClient(hc), graphBase: facebookGraphBase}
}

func (p *FacebookPublisher) ValidateCredentials(raw json.RawMessage) error {
	var c FacebookCredentials
	return decodeCredentials(raw, &c)
}

func (p *FacebookPublisher) TestConnection(ctx context.Context, raw json.RawMessage) TestResult {
	var c FacebookCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return testFailed(err)
	}

	var page struct {
		Name string `json:"name"`
	}
	resp, err := p.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "name",
			"access_token": strings.TrimSpace(c.PageAccessToken),
		}).
		SetResult(&page).
		Get(p.graphBase + "/" + url.PathEscape(strings.TrimSpace(c.PageID)))
	if err := check("Facebook API error", resp, err); err != nil {
		return testFailed(err)
	}

	name := "Facebook Page"
	if page.Name != "" {
		name = page.Name
	}
	return TestResult{Success: true, DisplayName: name}
}

func (p *FacebookPublisher) Publish(ctx context.Context, post Post, raw json.RawMessage) PublishResult {
	var c FacebookCredentials
	if err := decodeCredentials(raw, &c); err != nil {
		return publishFailed("%v", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	resp, err := p.rc.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"message":      post.Text,
			"access_token": strings.TrimSpace(c.PageAccessToken),
		}).
		SetResult(&out).
		Post(p.graphBase + "/" + url.PathEscape(strings.TrimSpace(c.PageID)) + "/feed")
	if err := check("Facebook post failed", resp, err); err != nil {
		return publishFailed("%v", err)
	}

	postURL := ""
	if out.ID != "" {
		postURL = "https://www.facebook.com/" + out.ID
	}
	return published(out.ID, postURL)
}
