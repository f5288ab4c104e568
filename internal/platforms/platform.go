// Package platforms adapts heterogeneous social network publishing protocols
// to one Publisher contract and maps platform identifiers to implementations.
//
// Publishers never panic or return Go errors across the contract: every
// failure, including a missing credential field, comes back as a result with
// Success false and a human-readable Error.
package platforms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/crosspost/internal/common"
)

// Post is what gets delivered: the adapted text plus local media file paths.
type Post struct {
	Text  string
	Media []string
}

type PublishResult struct {
	Success bool   `json:"success"`
	PostID  string `json:"postId,omitempty"`
	PostURL string `json:"postUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}

type TestResult struct {
	Success     bool   `json:"success"`
	DisplayName string `json:"displayName,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Err reports a failed check as an error wrapping common.ErrPlatform, for
// callers that signal failure through exit status rather than data.
func (r TestResult) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", common.ErrPlatform, r.Error)
}

// Publisher is one platform's capability set. raw is the decrypted JSON
// credential blob for the connection.
type Publisher interface {
	// ValidateCredentials checks required fields without touching the network.
	ValidateCredentials(raw json.RawMessage) error
	TestConnection(ctx context.Context, raw json.RawMessage) TestResult
	Publish(ctx context.Context, post Post, raw json.RawMessage) PublishResult
}

// Preparer is implemented by publishers that derive extra credential fields
// when a connection is created. It returns the credentials to store and a
// display name suggestion (may be empty).
type Preparer interface {
	PrepareCredentials(raw json.RawMessage) (json.RawMessage, string, error)
}

func published(id, url string) PublishResult {
	return PublishResult{Success: true, PostID: id, PostURL: url}
}

func publishFailed(format string, args ...any) PublishResult {
	return PublishResult{Error: fmt.Sprintf(format, args...)}
}

func testFailed(err error) TestResult {
	return TestResult{Error: err.Error()}
}
