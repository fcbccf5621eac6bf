package model

import (
	"strings"
	"time"
)

// InputKind tags the variant carried by Input
type InputKind string

const (
	InputUnsupported   InputKind = "unsupported"
	InputInstagramURL  InputKind = "instagram_url"
	InputYouTubeURL    InputKind = "youtube_url"
	InputUploadedVideo InputKind = "uploaded_video"
	InputUploadedAudio InputKind = "uploaded_audio"
	InputVoice         InputKind = "voice"
	InputSearchQuery   InputKind = "search_query"
)

// Input is the user-submitted media reference. Exactly one of URL, FileID or Text
// is meaningful, selected by Kind.
type Input struct {
	Kind     InputKind `json:"kind"`
	URL      string    `json:"url,omitempty"`
	FileID   string    `json:"file_id,omitempty"`
	FileSize int64     `json:"file_size,omitempty"`
	MIME     string    `json:"mime,omitempty"`
	Text     string    `json:"text,omitempty"`
}

// IsUpload reports whether the input references a platform-hosted file
func (i Input) IsUpload() bool {
	switch i.Kind {
	case InputUploadedVideo, InputUploadedAudio, InputVoice:
		return true
	}
	return false
}

var (
	youTubeHosts   = []string{"youtube.com/", "youtu.be/", "music.youtube.com/"}
	instagramHosts = []string{"instagram.com/", "instagr.am/"}
)

// ParseTextInput classifies a text message into a URL variant or an unsupported input
func ParseTextInput(text string) Input {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return Input{Kind: InputUnsupported, Text: trimmed}
	}
	for _, host := range youTubeHosts {
		if strings.Contains(lower, host) {
			return Input{Kind: InputYouTubeURL, URL: trimmed}
		}
	}
	for _, host := range instagramHosts {
		if strings.Contains(lower, host) {
			return Input{Kind: InputInstagramURL, URL: trimmed}
		}
	}
	return Input{Kind: InputUnsupported, Text: trimmed}
}

// ParseSearchQuery builds a search input from "<title>, <artist>". The artist
// part is optional; an empty title yields an unsupported input.
func ParseSearchQuery(query string) Input {
	trimmed := strings.TrimSpace(query)
	title, _, _ := strings.Cut(trimmed, ",")
	if strings.TrimSpace(title) == "" {
		return Input{Kind: InputUnsupported, Text: trimmed}
	}
	return Input{Kind: InputSearchQuery, Text: trimmed}
}

// SearchTerms splits a search input's text into title and artist
func (i Input) SearchTerms() (title, artist string) {
	title, artist, _ = strings.Cut(i.Text, ",")
	return strings.TrimSpace(title), strings.TrimSpace(artist)
}

// ChatKind mirrors the chat type the request arrived from
type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

// Request is one inbound message routed into the pipeline. It is immutable.
type Request struct {
	ID          string    `json:"id"`
	RequesterID int64     `json:"requester_id"`
	ChatID      int64     `json:"chat_id"`
	MessageID   int       `json:"message_id"`
	ChatKind    ChatKind  `json:"chat_kind"`
	Input       Input     `json:"input"`
	ReceivedAt  time.Time `json:"received_at"`
}

// ArtifactKind distinguishes video from audio artifacts
type ArtifactKind string

const (
	ArtifactVideo ArtifactKind = "video"
	ArtifactAudio ArtifactKind = "audio"
)

// MediaArtifact is a locally stored media file owned by a single request
type MediaArtifact struct {
	LocalPath string       `json:"local_path"`
	Kind      ArtifactKind `json:"kind"`
	Caption   string       `json:"caption,omitempty"`
}

// RecognitionMatch is the top match returned by the fingerprint service
type RecognitionMatch struct {
	Title       string      `json:"title"`
	Artists     []string    `json:"artists"`
	Album       string      `json:"album,omitempty"`
	Genres      []string    `json:"genres,omitempty"`
	ReleaseDate string      `json:"release_date,omitempty"`
	ExternalIDs ExternalIDs `json:"external_ids"`
}

// ExternalIDs holds platform-native identifiers; empty means absent
type ExternalIDs struct {
	Spotify string `json:"spotify,omitempty"`
	YouTube string `json:"youtube,omitempty"`
}

// PrimaryArtist returns the first artist or an empty string
func (m *RecognitionMatch) PrimaryArtist() string {
	if m == nil || len(m.Artists) == 0 {
		return ""
	}
	return m.Artists[0]
}

// ResolvedLinks is always fully populated once a match exists
type ResolvedLinks struct {
	Spotify string `json:"spotify"`
	YouTube string `json:"youtube"`
}

// FetchedSong is a tagged audio file in the song store
type FetchedSong struct {
	LocalPath string `json:"local_path"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Key       string `json:"key"`
	CacheHit  bool   `json:"cache_hit"`
}
