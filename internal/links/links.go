package links

import (
	"net/url"
	"strings"
	"tunedetect/pkg/model"
)

const (
	spotifyTrackURL  = "https://open.spotify.com/track/"
	spotifySearchURL = "https://open.spotify.com/search/"
	youTubeWatchURL  = "https://www.youtube.com/watch?v="
	youTubeSearchURL = "https://www.youtube.com/results?search_query="
)

// Resolve returns a Spotify and a YouTube link for match. Platform ids from
// the match give direct links; otherwise a title search link is used.
// Both links are always populated for a non-nil match.
func Resolve(match *model.RecognitionMatch) model.ResolvedLinks {
	if match == nil {
		return model.ResolvedLinks{}
	}
	return model.ResolvedLinks{
		Spotify: Spotify(match),
		YouTube: YouTube(match),
	}
}

func Spotify(match *model.RecognitionMatch) string {
	if id := strings.TrimSpace(match.ExternalIDs.Spotify); id != "" {
		return spotifyTrackURL + url.PathEscape(id)
	}
	return spotifySearchURL + url.PathEscape(match.Title)
}

func YouTube(match *model.RecognitionMatch) string {
	if id := strings.TrimSpace(match.ExternalIDs.YouTube); id != "" {
		return youTubeWatchURL + url.QueryEscape(id)
	}
	return youTubeSearchURL + url.QueryEscape(match.Title)
}
