package links

import (
	"testing"
	"tunedetect/pkg/model"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		match       *model.RecognitionMatch
		wantSpotify string
		wantYouTube string
	}{
		{
			name:        "search fallback",
			match:       &model.RecognitionMatch{Title: "Song X", Artists: []string{"Artist Y"}},
			wantSpotify: "https://open.spotify.com/search/Song%20X",
			wantYouTube: "https://www.youtube.com/results?search_query=Song+X",
		},
		{
			name: "direct links",
			match: &model.RecognitionMatch{
				Title:       "Song X",
				ExternalIDs: model.ExternalIDs{Spotify: "4uLU6hMCjMI75M1A2tKUQC", YouTube: "dQw4w9WgXcQ"},
			},
			wantSpotify: "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			wantYouTube: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name: "mixed",
			match: &model.RecognitionMatch{
				Title:       "Rock & Roll",
				ExternalIDs: model.ExternalIDs{YouTube: "abc"},
			},
			wantSpotify: "https://open.spotify.com/search/Rock%20&%20Roll",
			wantYouTube: "https://www.youtube.com/watch?v=abc",
		},
		{
			name:        "query characters are encoded",
			match:       &model.RecognitionMatch{Title: "What?/Why#"},
			wantSpotify: "https://open.spotify.com/search/What%3F%2FWhy%23",
			wantYouTube: "https://www.youtube.com/results?search_query=What%3F%2FWhy%23",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.match)
			assert.Equal(t, tt.wantSpotify, got.Spotify)
			assert.Equal(t, tt.wantYouTube, got.YouTube)
		})
	}
}

func TestResolve_Pure(t *testing.T) {
	match := &model.RecognitionMatch{Title: "Song X", Artists: []string{"Artist Y"}}
	first := Resolve(match)
	second := Resolve(match)

	assert.Equal(t, first, second)
	assert.Equal(t, "Song X", match.Title)
	assert.Empty(t, match.ExternalIDs.Spotify)
}

func TestResolve_Nil(t *testing.T) {
	assert.Equal(t, model.ResolvedLinks{}, Resolve(nil))
}
