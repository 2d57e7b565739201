package tracks

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of track kinds the pipeline extracts.
type Kind string

const (
	KindAudio    Kind = "audio"
	KindSubtitle Kind = "subtitle"
)

// Descriptor is one retained audio or subtitle stream. It is derived solely
// from one file's probe output and never modified afterwards.
type Descriptor struct {
	// Index is the container stream index, usable as an ffmpeg -map selector.
	Index         int    `json:"index"`
	Kind          Kind   `json:"kind"`
	Codec         string `json:"codec"`
	Language      string `json:"language"`
	Channels      int    `json:"channels,omitempty"`
	ChannelLayout string `json:"channel_layout,omitempty"`
	Title         string `json:"title,omitempty"`
	Default       bool   `json:"default,omitempty"`
}

// Label renders a short human-readable summary for logs and tables.
func (d Descriptor) Label() string {
	parts := []string{fmt.Sprintf("#%d", d.Index), d.Language, d.Codec}
	if d.Kind == KindAudio && d.Channels > 0 {
		parts = append(parts, strconv.Itoa(d.Channels)+"ch")
	}
	if d.Title != "" {
		parts = append(parts, strings.TrimSpace(d.Title))
	}
	return strings.Join(parts, " ")
}

// Rejection records a probe stream the classifier did not keep and why.
type Rejection struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	Reason    string `json:"reason"`
}

// Classification is the classifier output for one file.
type Classification struct {
	// Audio holds the best track per language, best first.
	Audio []Descriptor
	// Subtitles holds one track per language in stream order.
	Subtitles []Descriptor
	// Primary is the audio track that drives naming.
	Primary Descriptor
	// Discarded lists lower-ranked duplicates and filtered tracks.
	Discarded []Descriptor
	// Rejected lists streams that are not audio or subtitles.
	Rejected []Rejection
}

// Retained returns every track selected for extraction, audio first.
func (c Classification) Retained() []Descriptor {
	out := make([]Descriptor, 0, len(c.Audio)+len(c.Subtitles))
	out = append(out, c.Audio...)
	out = append(out, c.Subtitles...)
	return out
}

// ClassificationError reports a probe payload that cannot be classified.
type ClassificationError struct {
	Reason string
}

func (e *ClassificationError) Error() string {
	return "classify: " + e.Reason
}

// ErrorKind classifies the error for logging and run summaries.
func (e *ClassificationError) ErrorKind() string { return "classification" }
