// Package media turns the media references stored on an item into local file
// paths that publishers can read.
package media

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dmitrijs2005/crosspost/internal/common"
)

// Resolver maps stored references to readable local paths, preserving order.
type Resolver interface {
	Resolve(ctx context.Context, refs []string) ([]string, error)
}

// cleanRef normalises a reference and rejects anything that would escape the
// storage root.
func cleanRef(ref string) (string, error) {
	r := strings.TrimSpace(strings.ReplaceAll(ref, "\\", "/"))
	if r == "" {
		return "", fmt.Errorf("%w: empty media reference", common.ErrValidation)
	}
	c := path.Clean(strings.TrimLeft(r, "/"))
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: media reference %q escapes storage root", common.ErrValidation, ref)
	}
	return c, nil
}
