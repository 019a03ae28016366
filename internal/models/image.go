package models

import "time"

// MaxImagesPerSlot is the largest number of photos accepted for one slot.
const MaxImagesPerSlot = 3

// EncodedImage is an opaque, submission-ready image handle. DataURL is what
// goes over the wire; the other fields are for display only.
type EncodedImage struct {
	Name     string
	MIMEType string
	DataURL  string
	Width    int
	Height   int
	TakenAt  time.Time
}

// DataURLs returns the wire form of images, preserving order.
func DataURLs(images []EncodedImage) []string {
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.DataURL
	}
	return urls
}
