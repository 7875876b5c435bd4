package service

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	dueDateLayout = "2006-01-02"
	dueTimeLayout = "15:04"
)

func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(dueDateLayout, raw)
	if err != nil {
		return nil, validationf("due date must be YYYY-MM-DD")
	}
	return &d, nil
}

func parseDueTime(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dueTimeLayout, raw)
	if err != nil {
		return nil, validationf("due time must be HH:MM")
	}
	normalized := t.Format(dueTimeLayout)
	return &normalized, nil
}

func validTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", validationf("title is required")
	}
	if !utf8.ValidString(title) {
		return "", validationf("title must be valid UTF-8")
	}
	return title, nil
}

// normalizeTags trims, drops empties and removes duplicates while keeping
// first-seen order.
func normalizeTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func optionalID(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}
