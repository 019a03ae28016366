// Package media turns photo files into submission-ready encoded images.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/evanoberholster/imagemeta/meta"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/mpataki/playcheck/internal/models"
)

const (
	// MaxDimension bounds the long edge of an encoded image. Larger photos
	// are downscaled before upload.
	MaxDimension = 1600

	jpegQuality = 85
	dataURLHead = "data:image/jpeg;base64,"
)

// Load decodes the JPEG, PNG or GIF at path and re-encodes it as a JPEG
// data URL, downscaled to MaxDimension. The EXIF orientation is applied to
// the pixels, since the re-encoded JPEG carries no metadata.
func Load(path string) (models.EncodedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.EncodedImage{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return models.EncodedImage{}, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	bounds := src.Bounds()
	width, height := scaledDimensions(bounds.Dx(), bounds.Dy(), MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// JPEG has no alpha; transparent regions become white.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if width != bounds.Dx() || height != bounds.Dy() {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	} else {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	}

	taken, orientation := readExif(f)
	oriented := orient(dst, orientation)
	width, height = oriented.Bounds().Dx(), oriented.Bounds().Dy()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, oriented, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return models.EncodedImage{}, fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	img := models.EncodedImage{
		Name:     filepath.Base(path),
		MIMEType: "image/jpeg",
		DataURL:  dataURLHead + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:    width,
		Height:   height,
		TakenAt:  taken,
	}

	log.Debug().
		Str("path", path).
		Str("format", format).
		Int("orig_width", bounds.Dx()).
		Int("orig_height", bounds.Dy()).
		Int("width", width).
		Int("height", height).
		Uint16("orientation", uint16(orientation)).
		Int("encoded_size", buf.Len()).
		Msg("Image encoded")

	return img, nil
}

// LoadAll loads paths in order, stopping at the first failure.
func LoadAll(paths []string) ([]models.EncodedImage, error) {
	images := make([]models.EncodedImage, 0, len(paths))
	for _, p := range paths {
		img, err := Load(p)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// readExif returns the EXIF capture time and orientation. Files without
// EXIF yield the zero time and OrientationHorizontal.
func readExif(r io.ReadSeeker) (time.Time, meta.Orientation) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return time.Time{}, meta.OrientationHorizontal
	}
	exif, err := imagemeta.Decode(r)
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata")
		return time.Time{}, meta.OrientationHorizontal
	}
	return exif.DateTimeOriginal(), exif.Orientation
}

// orient returns img transformed so that it displays upright for the given
// EXIF orientation. Orientations 5 to 8 swap width and height.
func orient(img *image.RGBA, o meta.Orientation) *image.RGBA {
	if o < meta.OrientationMirrorHorizontal || o > meta.OrientationRotate270 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if o >= meta.OrientationMirrorHorizontalRotate270 {
		dw, dh = h, w
	}
	out := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			var sx, sy int
			switch o {
			case meta.OrientationMirrorHorizontal:
				sx, sy = w-1-x, y
			case meta.OrientationRotate180:
				sx, sy = w-1-x, h-1-y
			case meta.OrientationMirrorVertical:
				sx, sy = x, h-1-y
			case meta.OrientationMirrorHorizontalRotate270:
				sx, sy = y, x
			case meta.OrientationRotate90:
				sx, sy = y, h-1-x
			case meta.OrientationMirrorHorizontalRotate90:
				sx, sy = w-1-y, h-1-x
			case meta.OrientationRotate270:
				sx, sy = w-1-y, x
			}
			out.SetRGBA(x, y, img.RGBAAt(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return out
}

// scaledDimensions fits width x height within maxDimension, keeping the
// aspect ratio. Images already small enough are unchanged.
func scaledDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width > height {
		return maxDimension, max(1, int(float64(height)*float64(maxDimension)/float64(width)))
	}
	return max(1, int(float64(width)*float64(maxDimension)/float64(height))), maxDimension
}
