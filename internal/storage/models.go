// Package storage provides database models and repositories for the club engine.
package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Club is a normalized club record. Category and tags are title-cased at the
// storage boundary so comparisons and display agree everywhere downstream.
type Club struct {
	ID          string
	Name        string
	Description string
	Category    string
	Tags        []string
	ImageURL    string
	NextEvent   *NextEvent
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NextEvent is the presentation hint shown on club cards.
type NextEvent struct {
	Time     string `json:"time"`
	Location string `json:"location"`
}

// UserPreferenceProfile holds a user's interest tags and onboarding state.
type UserPreferenceProfile struct {
	UserID         string
	PreferenceTags []string
	TookQuiz       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// QuizQuestion is an onboarding quiz question with its selectable options.
type QuizQuestion struct {
	ID       string
	Text     string
	Position int
	Options  []QuizOption
}

// QuizOption is a single answer option. Selecting it contributes its tags
// to the user's preference profile.
type QuizOption struct {
	ID         string
	QuestionID string
	Text       string
	Tags       []string
}

// QuizResponse records one selected option for analytics.
type QuizResponse struct {
	UserID     string
	QuestionID string
	OptionID   string
}

// ClubEvent is a scheduled club event users can sign up for.
type ClubEvent struct {
	ID       string
	ClubID   string
	Title    string
	StartsAt time.Time
	Location string
}

// NormalizeLabel title-cases a category or tag for presentation while
// trimming surrounding whitespace. Identity comparisons elsewhere are
// case-insensitive, so this only affects display consistency.
func NormalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	upperNext := true
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' || r == '/' {
			upperNext = true
			b.WriteRune(r)
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// NormalizeLabels applies NormalizeLabel to every element, dropping empties.
func NormalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if n := NormalizeLabel(l); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// marshalTags serializes a tag slice for a JSON text column. A nil slice is
// stored as an empty array so scans never produce null.
func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	return string(data), nil
}

// unmarshalTags deserializes a tag slice from a JSON text column, tolerating
// empty and null values.
func unmarshalTags(data string) ([]string, error) {
	if data == "" || data == "null" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}
