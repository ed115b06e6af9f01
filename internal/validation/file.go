package validation

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

type ImageRules struct {
	MimeTypes  map[string]string // detected mime type -> canonical extension
	Extensions map[string]bool
	MaxSize    int64
}

var AvatarRules = ImageRules{
	MimeTypes: map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
	},
	Extensions: map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true},
	MaxSize:    5 << 20,
}

// ValidateImage checks size, extension and magic number, and returns the
// detected mime type. The declared Content-Type header is ignored.
func ValidateImage(header *multipart.FileHeader, rules ImageRules) (string, error) {
	if header.Size > rules.MaxSize {
		return "", invalid("file too large: maximum size is %d MB", rules.MaxSize/(1<<20))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !rules.Extensions[ext] {
		return "", invalid("invalid file extension: %s", ext)
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// DetectContentType looks at no more than 512 bytes
	buffer := make([]byte, 512)
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	detected := http.DetectContentType(buffer[:n])
	if _, ok := rules.MimeTypes[detected]; !ok {
		return "", invalid("invalid file type (detected: %s)", detected)
	}

	return detected, nil
}
