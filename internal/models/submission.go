package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CriterionScore is the evaluation of one criterion. Score is 0, 0.5 or 1.
type CriterionScore struct {
	Score               float64 `json:"score"`
	WhatWentWell        string  `json:"what_went_well"`
	WhatCouldBeImproved string  `json:"what_could_be_improved"`
}

// ValidScore reports whether s is one of the three scores the evaluator emits.
func ValidScore(s float64) bool {
	return s == 0 || s == 0.5 || s == 1
}

type CriterionFeedback struct {
	Criterion string
	CriterionScore
}

// Feedback maps criterion names to scores. It is a slice so the order the
// evaluator produced the criteria in survives decoding.
type Feedback []CriterionFeedback

// Get returns the score recorded for criterion.
func (f Feedback) Get(criterion string) (CriterionScore, bool) {
	for _, c := range f {
		if c.Criterion == criterion {
			return c.CriterionScore, true
		}
	}
	return CriterionScore{}, false
}

func (f Feedback) Criteria() []string {
	names := make([]string, len(f))
	for i, c := range f {
		names[i] = c.Criterion
	}
	return names
}

func (f Feedback) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Criterion)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.CriterionScore)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Feedback) UnmarshalJSON(data []byte) error {
	var out Feedback
	err := decodeOrderedObject(data, func(key string, dec *json.Decoder) error {
		var score CriterionScore
		if err := dec.Decode(&score); err != nil {
			return fmt.Errorf("criterion %q: %w", key, err)
		}
		out = append(out, CriterionFeedback{Criterion: key, CriterionScore: score})
		return nil
	})
	if err != nil {
		return err
	}
	*f = out
	return nil
}

// Submission is one evaluated submission as returned by the backend.
type Submission struct {
	ID                  string    `json:"id"`
	PlaygroundImageURLs []string  `json:"playground_image_urls"`
	ToyImageURLs        []string  `json:"toy_image_urls"`
	ActivityDescription string    `json:"activity_description,omitempty"`
	PlaygroundFeedback  Feedback  `json:"playground_feedback,omitempty"`
	ToyFeedback         Feedback  `json:"toy_feedback,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// FeedbackFor returns the feedback of one slot.
func (s *Submission) FeedbackFor(slot Slot) Feedback {
	if s == nil {
		return nil
	}
	if slot == SlotToy {
		return s.ToyFeedback
	}
	return s.PlaygroundFeedback
}

// SubmitRequest is the payload of a design submission.
type SubmitRequest struct {
	PlaygroundImages    []string `json:"playground_images_data_base64"`
	ToyImages           []string `json:"toy_images_data_base64"`
	ActivityDescription string   `json:"activity_description"`
}

// HistoryEntry is a locally stored summary of a completed submission.
type HistoryEntry struct {
	ID              string
	CreatedAt       time.Time
	SavedAt         time.Time
	Description     string
	PlaygroundCount int
	ToyCount        int
}

// decodeOrderedObject walks a JSON object key by key, handing the decoder to
// fn positioned at each value. null decodes to no entries.
func decodeOrderedObject(data []byte, fn func(key string, dec *json.Decoder) error) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := fn(key, dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
