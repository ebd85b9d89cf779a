package llm

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Image is the photograph sent alongside a prompt.
type Image struct {
	Data      []byte
	MediaType string
}

// NewImage wraps raw bytes, sniffing the media type when none is given.
func NewImage(data []byte, mediaType string) *Image {
	if mediaType == "" {
		mediaType = sniffMediaType(data)
	}
	return &Image{Data: data, MediaType: mediaType}
}

// ReadImage reads an image file and detects its media type
func ReadImage(imagePath string) (*Image, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image %s is empty", imagePath)
	}
	return &Image{Data: data, MediaType: DetectMediaType(imagePath, data)}, nil
}

// Empty reports whether there is no image data.
func (i *Image) Empty() bool {
	return i == nil || len(i.Data) == 0
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i *Image) Base64() string {
	if i.Empty() {
		return ""
	}
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL for OpenAI-style APIs.
func (i *Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MediaType, i.Base64())
}

// DetectMediaType returns the media type based on file extension, falling back
// to content sniffing.
func DetectMediaType(path string, data []byte) string {
	lower := strings.ToLower(path)

	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	}

	return sniffMediaType(data)
}

func sniffMediaType(data []byte) string {
	if len(data) == 0 {
		return "image/jpeg"
	}
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	// Default to JPEG
	return "image/jpeg"
}
