package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecLong     string            `json:"codec_long_name"`
	CodecType     string            `json:"codec_type"`
	Profile       string            `json:"profile"`
	Duration      string            `json:"duration"`
	BitRate       string            `json:"bit_rate"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	SampleRate    string            `json:"sample_rate"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	Tags          map[string]string `json:"tags"`
	Disposition   map[string]int    `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

// ProbeError reports a failed ffprobe invocation or an unparseable payload.
type ProbeError struct {
	Path string
	// Transient marks failures worth retrying: timeouts and a binary that
	// could not be started.
	Transient bool
	Detail    string
	Err       error
}

func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("probe %s", e.Path)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for logging and run summaries.
func (e *ProbeError) ErrorKind() string { return "probe" }

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, &ProbeError{Err: errors.New("empty path")}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		transient := errors.Is(ctx.Err(), context.DeadlineExceeded) ||
			errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
		return Result{}, &ProbeError{Path: path, Transient: transient, Detail: strings.TrimSpace(stderr.String()), Err: err}
	}
	return Parse(path, stdout.Bytes())
}

// Parse decodes an ffprobe JSON payload.
func Parse(path string, payload []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, &ProbeError{Path: path, Detail: "invalid ffprobe json", Err: err}
	}
	return result, nil
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// Resolution returns the frame size of the first real video stream. Cover art
// attachments are ignored. ok is false when no video stream reports a size.
func (r Result) Resolution() (width, height int, ok bool) {
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		if stream.Disposition["attached_pic"] == 1 {
			continue
		}
		if stream.Width > 0 && stream.Height > 0 {
			return stream.Width, stream.Height, true
		}
	}
	return 0, 0, false
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// DurationMillis returns the container duration rounded to whole milliseconds.
// ok is false when ffprobe reported no usable duration.
func (r Result) DurationMillis() (int64, bool) {
	seconds := r.DurationSeconds()
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0, false
	}
	return int64(math.Round(seconds * 1000)), true
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

var yearPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// Year returns the release year from container tags (year, date, or
// date_released), or 0 when none is present.
func (r Result) Year() int {
	for _, key := range []string{"year", "date", "date_released", "creation_date"} {
		value := Tag(r.Format.Tags, key)
		if value == "" {
			continue
		}
		if match := yearPattern.FindString(value); match != "" {
			year, _ := strconv.Atoi(match)
			return year
		}
	}
	return 0
}

// Title returns the container title tag, if any.
func (r Result) Title() string {
	return strings.TrimSpace(Tag(r.Format.Tags, "title"))
}

// Tag performs a case-insensitive tag lookup; Matroska muxers disagree on case.
func Tag(tags map[string]string, key string) string {
	if len(tags) == 0 {
		return ""
	}
	if value, ok := tags[key]; ok {
		return value
	}
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
