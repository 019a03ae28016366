package media

import (
	"errors"
	"fmt"

	"github.com/mpataki/playcheck/internal/models"
)

var ErrSlotFull = fmt.Errorf("at most %d photos per slot", models.MaxImagesPerSlot)

var errIndex = errors.New("no photo at that position")

// Slot is the ordered photo list of one capture step.
type Slot struct {
	images []models.EncodedImage
}

func NewSlot(images []models.EncodedImage) *Slot {
	s := &Slot{}
	for _, img := range images {
		if s.Add(img) != nil {
			break
		}
	}
	return s
}

func (s *Slot) Add(img models.EncodedImage) error {
	if len(s.images) >= models.MaxImagesPerSlot {
		return ErrSlotFull
	}
	s.images = append(s.images, img)
	return nil
}

func (s *Slot) Replace(i int, img models.EncodedImage) error {
	if i < 0 || i >= len(s.images) {
		return errIndex
	}
	s.images[i] = img
	return nil
}

func (s *Slot) Remove(i int) error {
	if i < 0 || i >= len(s.images) {
		return errIndex
	}
	s.images = append(s.images[:i], s.images[i+1:]...)
	return nil
}

func (s *Slot) Len() int {
	return len(s.images)
}

func (s *Slot) Full() bool {
	return len(s.images) >= models.MaxImagesPerSlot
}

// Images returns a copy of the slot contents in order.
func (s *Slot) Images() []models.EncodedImage {
	return append([]models.EncodedImage(nil), s.images...)
}
