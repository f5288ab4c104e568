package platforms

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// limitMedia drops attachments beyond the platform ceiling.
func limitMedia(paths []string, max int) []string {
	if max <= 0 {
		return nil
	}
	if len(paths) > max {
		return paths[:max]
	}
	return paths
}

// mediaFile is an attachment loaded from disk.
type mediaFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

func loadMedia(path string) (*mediaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read media %s: %w", filepath.Base(path), err)
	}
	return &mediaFile{
		Name:     filepath.Base(path),
		MIMEType: detectMIME(path, data),
		Data:     data,
	}, nil
}

// detectMIME sniffs content with mimetype. Anything that is not recognised
// as image or video falls back to the file extension, defaulting to JPEG.
func detectMIME(path string, data []byte) string {
	mt := mimetype.Detect(data).String()
	if strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "video/") {
		return mt
	}
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
