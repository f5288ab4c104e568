// Package quickconnect keeps the app-wide monthly publish counter for
// connections created through the app-mediated OAuth flow.
package quickconnect

import "context"

type Repository interface {
	Increment(ctx context.Context, platform, month string) error
	// ListMonth returns platform -> count for month; platforms without a row are absent.
	ListMonth(ctx context.Context, month string) (map[string]int, error)
}
