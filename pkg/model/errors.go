package model

import (
	"context"
	"errors"
)

var (
	ErrInput                 = errors.New("unsupported input")
	ErrSourceUnavailable     = errors.New("source unavailable")
	ErrSizeExceeded          = errors.New("size exceeded")
	ErrExtraction            = errors.New("audio extraction failed")
	ErrRecognitionService    = errors.New("recognition service error")
	ErrFetch                 = errors.New("song fetch failed")
	ErrMembershipUnavailable = errors.New("membership check unavailable")
)

// Reason is the terminal classification of a request
type Reason string

const (
	ReasonNone                       Reason = ""
	ReasonRateLimited                Reason = "rate_limited"
	ReasonNotMember                  Reason = "not_member"
	ReasonMembershipCheckUnavailable Reason = "membership_check_unavailable"
	ReasonInput                      Reason = "input_error"
	ReasonSourceUnavailable          Reason = "source_unavailable"
	ReasonSizeExceeded               Reason = "size_exceeded"
	ReasonExtraction                 Reason = "extraction_error"
	ReasonRecognitionService         Reason = "recognition_service_error"
	ReasonNoMatch                    Reason = "no_match"
	ReasonFetch                      Reason = "fetch_error"
	ReasonCancelled                  Reason = "cancelled"
	ReasonInternal                   Reason = "internal"
)

// ReasonFor classifies a stage error. Unknown errors map to ReasonInternal.
func ReasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrInput):
		return ReasonInput
	case errors.Is(err, ErrSizeExceeded):
		return ReasonSizeExceeded
	case errors.Is(err, ErrSourceUnavailable):
		return ReasonSourceUnavailable
	case errors.Is(err, ErrExtraction):
		return ReasonExtraction
	case errors.Is(err, ErrRecognitionService):
		return ReasonRecognitionService
	case errors.Is(err, ErrFetch):
		return ReasonFetch
	case errors.Is(err, ErrMembershipUnavailable):
		return ReasonMembershipCheckUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	default:
		return ReasonInternal
	}
}

var userMessages = map[Reason]string{
	ReasonRateLimited:                "❌ Rate limit exceeded. Please try again in a minute.",
	ReasonNotMember:                  "🔒 Please join our group and channel to use this bot, then try again.",
	ReasonMembershipCheckUnavailable: "⚠️ Membership check is temporarily unavailable. Please try again later.",
	ReasonInput:                      "🤔 Please send a YouTube or Instagram link, a video, an audio file or a voice message.",
	ReasonSourceUnavailable:          "😕 Couldn't fetch that media. Check the link and try again.",
	ReasonSizeExceeded:               "📦 That video is too large to process.",
	ReasonExtraction:                 "🎧 Failed to extract audio from the media.",
	ReasonRecognitionService:         "⚠️ The recognition service is unavailable right now. Please try again later.",
	ReasonNoMatch:                    "🔍 Sorry, I couldn't identify any song in that media.",
	ReasonFetch:                      "🎵 I identified the song but couldn't fetch a copy of it.",
	ReasonCancelled:                  "⏱ Processing was interrupted. Please try again.",
	ReasonInternal:                   "💥 Something went wrong. Please try again later.",
}

// UserMessage is the single user-facing text for a terminal reason
func (r Reason) UserMessage() string {
	if msg, ok := userMessages[r]; ok {
		return msg
	}
	return userMessages[ReasonInternal]
}
