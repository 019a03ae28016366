package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type CriterionSuggestions struct {
	Criterion   string
	Suggestions []string
}

// SuggestionList maps criterion names to actionable suggestions, in the
// order the backend produced them.
type SuggestionList []CriterionSuggestions

func (l SuggestionList) Get(criterion string) ([]string, bool) {
	for _, c := range l {
		if c.Criterion == criterion {
			return c.Suggestions, true
		}
	}
	return nil, false
}

func (l SuggestionList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Criterion)
		if err != nil {
			return nil, err
		}
		items := c.Suggestions
		if items == nil {
			items = []string{}
		}
		val, err := json.Marshal(items)
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

func (l *SuggestionList) UnmarshalJSON(data []byte) error {
	var out SuggestionList
	err := decodeOrderedObject(data, func(key string, dec *json.Decoder) error {
		var items []string
		if err := dec.Decode(&items); err != nil {
			return fmt.Errorf("criterion %q: %w", key, err)
		}
		out = append(out, CriterionSuggestions{Criterion: key, Suggestions: items})
		return nil
	})
	if err != nil {
		return err
	}
	*l = out
	return nil
}

// Suggestions holds the improvement suggestions generated for a submission.
type Suggestions struct {
	ID           string         `json:"id"`
	SubmissionID string         `json:"submission_id"`
	Playground   SuggestionList `json:"playground_suggestions,omitempty"`
	Toy          SuggestionList `json:"toy_suggestions,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (s *Suggestions) For(slot Slot) SuggestionList {
	if s == nil {
		return nil
	}
	if slot == SlotToy {
		return s.Toy
	}
	return s.Playground
}

// Empty reports whether no criterion on either side has suggestions.
func (s *Suggestions) Empty() bool {
	return s == nil || (len(s.Playground) == 0 && len(s.Toy) == 0)
}
