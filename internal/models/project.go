package models

import "time"

const DefaultProjectColor = "#667eea"

type Project struct {
	ID          string
	Name        string
	Description string
	Color       string
	CreatedBy   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
