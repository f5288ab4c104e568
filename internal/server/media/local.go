package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalResolver serves media stored under a data directory, e.g. a ref of
// "media/<user>/<file>" resolves to "<root>/media/<user>/<file>".
type LocalResolver struct {
	root string
}

func NewLocalResolver(root string) *LocalResolver {
	return &LocalResolver{root: root}
}

func (r *LocalResolver) Resolve(_ context.Context, refs []string) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		c, err := cleanRef(ref)
		if err != nil {
			return nil, err
		}
		p := filepath.Join(r.root, filepath.FromSlash(c))
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("media %s: %w", ref, err)
		}
		out = append(out, p)
	}
	return out, nil
}
