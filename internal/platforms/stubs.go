package platforms

import (
	"context"
	"encoding/json"
)

// stubPublisher validates credentials but cannot deliver yet. Connections
// can be created and tested so that they are ready once delivery lands.
type stubPublisher struct {
	name     string
	validate func(json.RawMessage) error
}

// NewLinkedInPublisher returns the LinkedIn adapter.
// TODO: implement delivery through the LinkedIn UGC posts API.
func NewLinkedInPublisher() Publisher {
	return &stubPublisher{
		name: "LinkedIn",
		validate: func(raw json.RawMessage) error {
			var c LinkedInCredentials
			return decodeCredentials(raw, &c)
		},
	}
}

// NewInstagramPublisher returns the Instagram adapter.
// TODO: implement the container create + media_publish flow of the Instagram Graph API.
func NewInstagramPublisher() Publisher {
	return &stubPublisher{
		name: "Instagram",
		validate: func(raw json.RawMessage) error {
			var c InstagramCredentials
			return decodeCredentials(raw, &c)
		},
	}
}

func (p *stubPublisher) ValidateCredentials(raw json.RawMessage) error {
	return p.validate(raw)
}

func (p *stubPublisher) TestConnection(_ context.Context, raw json.RawMessage) TestResult {
	if err := p.validate(raw); err != nil {
		return testFailed(err)
	}
	return TestResult{Success: true, DisplayName: p.name + " (stub)"}
}

func (p *stubPublisher) Publish(_ context.Context, _ Post, raw json.RawMessage) PublishResult {
	if err := p.validate(raw); err != nil {
		return publishFailed("%v", err)
	}
	return publishFailed("%s publishing is not implemented yet", p.name)
}
