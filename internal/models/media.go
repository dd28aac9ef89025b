package models

import "time"

// Media is one stored media blob, addressable by name. A blob imported from
// an archive is stored twice when a manifest entry exists: once under its
// numeric archive name and once under its human-readable name.
type Media struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
