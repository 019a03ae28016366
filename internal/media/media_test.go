package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanoberholster/imagemeta/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/playcheck/internal/models"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func decodeDataURL(t *testing.T, url string) image.Image {
	t.Helper()
	require.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
	data, err := base64.StdEncoding.DecodeString(strings.SplitN(url, ",", 2)[1])
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestLoadDownscales(t *testing.T) {
	path := writePNG(t, t.TempDir(), "swing.png", 3200, 800)

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "swing.png", img.Name)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Equal(t, 1600, img.Width)
	assert.Equal(t, 400, img.Height)
	assert.True(t, img.TakenAt.IsZero())

	decoded := decodeDataURL(t, img.DataURL)
	assert.Equal(t, image.Rect(0, 0, 1600, 400), decoded.Bounds())
}

// writeRotatedJPEG writes a w x h JPEG, red on the left half and blue on the
// right, tagged with EXIF orientation 6 (rotate 90 clockwise to display).
func writeRotatedJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 220, B: 20, A: 255}
			if x >= w/2 {
				c = color.RGBA{R: 20, B: 220, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var encoded bytes.Buffer
	require.NoError(t, jpeg.Encode(&encoded, img, &jpeg.Options{Quality: 95}))

	// Big-endian TIFF header, IFD0 with a single Orientation (0x0112) SHORT.
	tiff := []byte{
		'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	size := len(payload) + 2
	app1 := append([]byte{0xff, 0xe1, byte(size >> 8), byte(size)}, payload...)

	data := encoded.Bytes()
	out := append([]byte{}, data[:2]...)
	out = append(out, app1...)
	out = append(out, data[2:]...)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, out, 0o644))
	return path
}

func TestLoadAppliesOrientation(t *testing.T) {
	path := writeRotatedJPEG(t, t.TempDir(), "portrait.jpg", 40, 20)

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Width)
	assert.Equal(t, 40, img.Height)

	decoded := decodeDataURL(t, img.DataURL)
	require.Equal(t, image.Rect(0, 0, 20, 40), decoded.Bounds())

	// The left edge of the stored image is the top once rotated clockwise.
	top := color.RGBAModel.Convert(decoded.At(10, 5)).(color.RGBA)
	bottom := color.RGBAModel.Convert(decoded.At(10, 35)).(color.RGBA)
	assert.Greater(t, top.R, top.B)
	assert.Greater(t, bottom.B, bottom.R)
}

func TestOrient(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	mark := color.RGBA{R: 255, A: 255}
	src.SetRGBA(0, 0, mark)

	cases := []struct {
		orientation   meta.Orientation
		width, height int
		x, y          int
	}{
		{meta.OrientationHorizontal, 3, 2, 0, 0},
		{meta.OrientationMirrorHorizontal, 3, 2, 2, 0},
		{meta.OrientationRotate180, 3, 2, 2, 1},
		{meta.OrientationMirrorVertical, 3, 2, 0, 1},
		{meta.OrientationMirrorHorizontalRotate270, 2, 3, 0, 0},
		{meta.OrientationRotate90, 2, 3, 1, 0},
		{meta.OrientationMirrorHorizontalRotate90, 2, 3, 1, 2},
		{meta.OrientationRotate270, 2, 3, 0, 2},
	}
	for _, tc := range cases {
		out := orient(src, tc.orientation)
		assert.Equal(t, image.Rect(0, 0, tc.width, tc.height), out.Bounds(), "orientation %d", tc.orientation)
		assert.Equal(t, mark, out.RGBAAt(tc.x, tc.y), "orientation %d", tc.orientation)
	}
}

func TestLoadKeepsSmallImages(t *testing.T) {
	path := writePNG(t, t.TempDir(), "toy.png", 40, 30)

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Width)
	assert.Equal(t, 30, img.Height)
}

func TestLoadRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes.jpg")
}

func TestLoadAllPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png", 10, 10)
	b := writePNG(t, dir, "b.png", 20, 10)

	images, err := LoadAll([]string{b, a})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "b.png", images[0].Name)
	assert.Equal(t, "a.png", images[1].Name)

	_, err = LoadAll([]string{a, filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
}

func TestScaledDimensions(t *testing.T) {
	w, h := scaledDimensions(800, 3200, 1600)
	assert.Equal(t, 400, w)
	assert.Equal(t, 1600, h)

	w, h = scaledDimensions(5000, 1, 1600)
	assert.Equal(t, 1600, w)
	assert.Equal(t, 1, h)
}

func TestSlot(t *testing.T) {
	s := NewSlot(nil)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(models.EncodedImage{Name: name}))
	}
	assert.True(t, s.Full())
	assert.ErrorIs(t, s.Add(models.EncodedImage{Name: "d"}), ErrSlotFull)

	require.NoError(t, s.Replace(1, models.EncodedImage{Name: "B"}))
	require.NoError(t, s.Remove(0))
	assert.Error(t, s.Remove(5))
	assert.Error(t, s.Replace(-1, models.EncodedImage{}))

	images := s.Images()
	require.Len(t, images, 2)
	assert.Equal(t, "B", images[0].Name)
	assert.Equal(t, "c", images[1].Name)

	images[0].Name = "mutated"
	assert.Equal(t, "B", s.Images()[0].Name)
}

func TestNewSlotCapsAtMax(t *testing.T) {
	s := NewSlot([]models.EncodedImage{{Name: "1"}, {Name: "2"}, {Name: "3"}, {Name: "4"}})
	assert.Equal(t, models.MaxImagesPerSlot, s.Len())
}
