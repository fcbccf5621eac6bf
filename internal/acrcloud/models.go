package acrcloud

import (
	"encoding/json"
	"fmt"
	"tunedetect/pkg/model"
)

// IdentifyResponse is the body returned by POST /v1/identify
type IdentifyResponse struct {
	Status   Status    `json:"status"`
	Metadata *Metadata `json:"metadata,omitempty"`
	CostTime float64   `json:"cost_time,omitempty"`
}

// Status carries the provider's result code; 0 is success, 1001 is no result
type Status struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Version string `json:"version,omitempty"`
}

// Failed reports a provider-side failure (3xxx) delivered with HTTP 200,
// such as an invalid key, an exhausted quota or a bad signature.
func (s Status) Failed() bool {
	return s.Code >= 3000 && s.Code < 4000
}

// Retryable is false for codes that a fresh attempt cannot fix
func (s Status) Retryable() bool {
	switch s.Code {
	case 3001, 3006, 3014:
		return false
	}
	return true
}

// StatusError is returned for a 2xx response whose status reports a failure
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("identify rejected: code=%d, msg=%s", e.Code, e.Msg)
}

// Metadata holds matched music entries ordered by the provider
type Metadata struct {
	Music     []Music `json:"music,omitempty"`
	Timestamp string  `json:"timestamp_utc,omitempty"`
}

// Music is one matched track
type Music struct {
	ACRID            string           `json:"acrid"`
	Title            string           `json:"title"`
	Artists          []Named          `json:"artists"`
	Album            Named            `json:"album"`
	Genres           []Named          `json:"genres"`
	ReleaseDate      string           `json:"release_date"`
	Label            string           `json:"label,omitempty"`
	DurationMs       int64            `json:"duration_ms,omitempty"`
	Score            int              `json:"score,omitempty"`
	ExternalMetadata ExternalMetadata `json:"external_metadata"`
}

// Named is the {"name": ...} object used for artists, albums and genres
type Named struct {
	Name string `json:"name"`
}

// ExternalMetadata links the track to third-party platforms. Each platform
// entry may be an object or a list of objects, so they are decoded lazily.
type ExternalMetadata struct {
	Spotify json.RawMessage `json:"spotify,omitempty"`
	YouTube json.RawMessage `json:"youtube,omitempty"`
	Deezer  json.RawMessage `json:"deezer,omitempty"`
}

type spotifyEntry struct {
	Track struct {
		ID string `json:"id"`
	} `json:"track"`
}

type youTubeEntry struct {
	VID string `json:"vid"`
}

// SpotifyTrackID returns the first Spotify track id, if any
func (e ExternalMetadata) SpotifyTrackID() string {
	var id string
	eachEntry(e.Spotify, func(raw json.RawMessage) bool {
		var entry spotifyEntry
		if json.Unmarshal(raw, &entry) == nil && entry.Track.ID != "" {
			id = entry.Track.ID
			return false
		}
		return true
	})
	return id
}

// YouTubeVideoID returns the first YouTube video id, if any
func (e ExternalMetadata) YouTubeVideoID() string {
	var id string
	eachEntry(e.YouTube, func(raw json.RawMessage) bool {
		var entry youTubeEntry
		if json.Unmarshal(raw, &entry) == nil && entry.VID != "" {
			id = entry.VID
			return false
		}
		return true
	})
	return id
}

// eachEntry calls fn for raw itself, or for every element when raw is a list
func eachEntry(raw json.RawMessage, fn func(json.RawMessage) bool) {
	if len(raw) == 0 {
		return
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		for _, item := range list {
			if !fn(item) {
				return
			}
		}
		return
	}
	fn(raw)
}

// ToMatch converts the provider entry into the pipeline's match type
func (m Music) ToMatch() *model.RecognitionMatch {
	match := &model.RecognitionMatch{
		Title:       m.Title,
		Album:       m.Album.Name,
		ReleaseDate: m.ReleaseDate,
		ExternalIDs: model.ExternalIDs{
			Spotify: m.ExternalMetadata.SpotifyTrackID(),
			YouTube: m.ExternalMetadata.YouTubeVideoID(),
		},
	}
	for _, a := range m.Artists {
		if a.Name != "" {
			match.Artists = append(match.Artists, a.Name)
		}
	}
	for _, g := range m.Genres {
		if g.Name != "" {
			match.Genres = append(match.Genres, g.Name)
		}
	}
	return match
}

// TopMatch returns the first matched track or nil when there is none
func (r *IdentifyResponse) TopMatch() *model.RecognitionMatch {
	if r == nil || r.Metadata == nil || len(r.Metadata.Music) == 0 {
		return nil
	}
	return r.Metadata.Music[0].ToMatch()
}
