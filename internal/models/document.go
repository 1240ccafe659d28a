// Package models defines GORM data models for backdrop.
package models

import (
	"time"
)

// Document is one JSON document stored under a path.
// The sqlite backend keeps the background record as a single Document row;
// writes replace Body wholesale.
type Document struct {
	// Path is the store path, e.g. "/backgroundConfig".
	Path string `gorm:"primaryKey;type:varchar(255)" json:"path"`
	Body string `gorm:"type:text;not null" json:"body"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Document.
func (Document) TableName() string {
	return "documents"
}
