package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/mpataki/playcheck/internal/models"
)

// timestamp accepts RFC 3339 as well as the naive ISO timestamps the backend
// emits for UTC datetimes.
type timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*t = timestamp{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = timestamp(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}

type submissionWire struct {
	ID                  string          `json:"id"`
	ObjectID            string          `json:"_id"`
	PlaygroundImageURLs []string        `json:"playground_image_urls"`
	ToyImageURLs        []string        `json:"toy_image_urls"`
	PlaygroundImageURL  string          `json:"playground_image_url"`
	ToyImageURL         string          `json:"toy_image_url"`
	ActivityDescription *string         `json:"activity_description"`
	PlaygroundFeedback  models.Feedback `json:"playground_feedback"`
	ToyFeedback         models.Feedback `json:"toy_feedback"`
	CreatedAt           timestamp       `json:"created_at"`
	UpdatedAt           timestamp       `json:"updated_at"`
}

func (w *submissionWire) normalize() (*models.Submission, error) {
	id := w.ID
	if id == "" {
		id = w.ObjectID
	}
	if id == "" {
		return nil, fmt.Errorf("response carries no submission id")
	}
	for _, fb := range []models.Feedback{w.PlaygroundFeedback, w.ToyFeedback} {
		for _, c := range fb {
			if !models.ValidScore(c.Score) {
				return nil, fmt.Errorf("criterion %q has invalid score %v", c.Criterion, c.Score)
			}
		}
	}

	sub := &models.Submission{
		ID:                  id,
		PlaygroundImageURLs: w.PlaygroundImageURLs,
		ToyImageURLs:        w.ToyImageURLs,
		PlaygroundFeedback:  w.PlaygroundFeedback,
		ToyFeedback:         w.ToyFeedback,
		CreatedAt:           time.Time(w.CreatedAt),
		UpdatedAt:           time.Time(w.UpdatedAt),
	}
	if len(sub.PlaygroundImageURLs) == 0 && w.PlaygroundImageURL != "" {
		sub.PlaygroundImageURLs = []string{w.PlaygroundImageURL}
	}
	if len(sub.ToyImageURLs) == 0 && w.ToyImageURL != "" {
		sub.ToyImageURLs = []string{w.ToyImageURL}
	}
	if w.ActivityDescription != nil {
		sub.ActivityDescription = *w.ActivityDescription
	}
	return sub, nil
}

type suggestionsWire struct {
	ID           string                `json:"id"`
	ObjectID     string                `json:"_id"`
	SubmissionID string                `json:"submission_id"`
	Playground   models.SuggestionList `json:"playground_suggestions"`
	Toy          models.SuggestionList `json:"toy_suggestions"`
	CreatedAt    timestamp             `json:"created_at"`
	UpdatedAt    timestamp             `json:"updated_at"`
}

func (w *suggestionsWire) normalize() *models.Suggestions {
	id := w.ID
	if id == "" {
		id = w.ObjectID
	}
	return &models.Suggestions{
		ID:           id,
		SubmissionID: w.SubmissionID,
		Playground:   w.Playground,
		Toy:          w.Toy,
		CreatedAt:    time.Time(w.CreatedAt),
		UpdatedAt:    time.Time(w.UpdatedAt),
	}
}
