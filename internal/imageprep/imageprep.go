// Package imageprep readies an uploaded photo for the vision model: it reads
// EXIF GPS coordinates and downscales oversized images.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/zhe.chen/landmark-story/internal/llm"
)

const jpegQuality = 85

// GPS is a position read from the photo's EXIF block.
type GPS struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Result is a prepared photo.
type Result struct {
	Image   *llm.Image
	GPS     *GPS
	Width   int
	Height  int
	Resized bool
}

// LoadFile reads and prepares the photo at path.
func LoadFile(path string, maxDimension int) (*Result, error) {
	img, err := llm.ReadImage(path)
	if err != nil {
		return nil, err
	}
	return Prepare(img, maxDimension)
}

// Prepare extracts GPS data and, when either side exceeds maxDimension,
// downscales the photo and re-encodes it as JPEG. Photos that cannot be
// decoded (HEIC, for instance) are passed through unchanged. A maxDimension
// of zero or less disables resizing.
func Prepare(img *llm.Image, maxDimension int) (*Result, error) {
	if img.Empty() {
		return nil, fmt.Errorf("image is empty")
	}

	result := &Result{Image: img}
	if gps, err := ExtractGPS(img.Data); err != nil {
		log.Debug().Err(err).Msg("No EXIF GPS data in image")
	} else {
		result.GPS = gps
	}

	decoded, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		log.Warn().Err(err).Str("media_type", img.MediaType).Msg("Could not decode image, sending original bytes")
		return result, nil
	}

	bounds := decoded.Bounds()
	result.Width, result.Height = bounds.Dx(), bounds.Dy()
	if maxDimension <= 0 || (result.Width <= maxDimension && result.Height <= maxDimension) {
		return result, nil
	}

	newWidth, newHeight := scaledDimensions(result.Width, result.Height, maxDimension)
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), decoded, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("orig_width", result.Width).
		Int("orig_height", result.Height).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Image downscaled")

	result.Image = llm.NewImage(buf.Bytes(), "image/jpeg")
	result.Width, result.Height = newWidth, newHeight
	result.Resized = true
	return result, nil
}

// ExtractGPS reads GPS coordinates from EXIF metadata. It returns an error
// when the data has no EXIF block or the block has no position.
func ExtractGPS(data []byte) (*GPS, error) {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	lat, lon := exifData.GPS.Latitude(), exifData.GPS.Longitude()
	if lat == 0 && lon == 0 {
		return nil, fmt.Errorf("no GPS coordinates")
	}
	return &GPS{Latitude: lat, Longitude: lon}, nil
}

// ReadGPS is ExtractGPS for a file on disk.
func ReadGPS(path string) (*GPS, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return ExtractGPS(data)
}

// scaledDimensions fits width x height inside maxDimension, keeping the
// aspect ratio.
func scaledDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		return maxDimension, max(newHeight, 1)
	}

	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	return max(newWidth, 1), maxDimension
}
