package api

import "time"

// Track is a library row. Path is the track's identity and is unique
// across the library; ID is the store-assigned numeric key.
type Track struct {
	ID         int64         `json:"id"`
	Path       string        `json:"path"`
	Title      string        `json:"title,omitempty"`
	Artist     string        `json:"artist,omitempty"`
	Album      string        `json:"album,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	AddedAt    time.Time     `json:"added_at"`
	PlayCount  int64         `json:"play_count"`
	LastPlayed *time.Time    `json:"last_played,omitempty"`
	Rating     *int          `json:"rating,omitempty"`
}

// Metadata is what a probe extracts from a file without a full decode.
type Metadata struct {
	Title    string        `json:"title,omitempty"`
	Artist   string        `json:"artist,omitempty"`
	Album    string        `json:"album,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Playlist is a named ordered sequence of track references.
type Playlist struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	TrackCount int       `json:"track_count"`
}

// RatingMin and RatingMax bound the user rating scale, inclusive.
const (
	RatingMin = 0
	RatingMax = 5
)
