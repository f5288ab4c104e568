// Package brands answers ownership questions about brands. Brands themselves
// are managed outside crosspost; connections and items only reference them.
package brands

import "context"

type Repository interface {
	// Owned reports whether id names a brand belonging to userID.
	Owned(ctx context.Context, id, userID string) (bool, error)
}
