// Package sightings stores user-reported aurora sightings. Reports arrive
// through the REST API and feed the public sightings ticker.
package sightings

import (
	"context"
	"time"
)

// Store defines the interface for sighting storage.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	// SaveSighting stores a single report and fills in its assigned ID.
	SaveSighting(ctx context.Context, s *Sighting) error

	// RecentSightings retrieves up to limit sightings, newest first.
	RecentSightings(ctx context.Context, limit int) ([]Sighting, error)

	// CountSince returns the number of sightings reported after the cutoff.
	CountSince(ctx context.Context, cutoff time.Time) (int, error)

	// PruneBefore deletes sightings older than the cutoff and returns how
	// many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Close closes the database connection.
	Close() error
}

// Sighting is a user report of visible aurora.
type Sighting struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Note      string    `json:"note,omitempty"`
}
