package signature

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sampling records which hash domain produced a signature.
type Sampling string

const (
	// SamplingEnds hashes a prefix and a suffix of the file.
	SamplingEnds Sampling = "ends"
	// SamplingWhole hashes the whole file; used when it is shorter than two samples.
	SamplingWhole Sampling = "whole"
	// SamplingPath hashes the absolute path. It only keys failure records for
	// files whose content could not be read.
	SamplingPath Sampling = "path"
)

// DefaultSampleBytes is the prefix and suffix size used when none is configured.
const DefaultSampleBytes int64 = 1 << 20

// FileSignature identifies file content independent of its path. Two files
// are the same content iff ContentHash and DurationMillis both match.
type FileSignature struct {
	ContentHash    string   `json:"content_hash"`
	DurationMillis int64    `json:"duration_ms"`
	Sampling       Sampling `json:"sampling,omitempty"`
}

// Key renders the signature as "<hash>:<millis>" for indexing and storage.
func (s FileSignature) Key() string {
	return s.ContentHash + ":" + strconv.FormatInt(s.DurationMillis, 10)
}

// IsZero reports whether the signature is unset.
func (s FileSignature) IsZero() bool {
	return s.ContentHash == "" && s.DurationMillis == 0
}

// ParseKey is the inverse of Key. The sampling mode is not part of the key.
func ParseKey(key string) (FileSignature, error) {
	hash, millis, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok || len(hash) != sha256.Size*2 {
		return FileSignature{}, fmt.Errorf("signature key %q: want <sha256>:<millis>", key)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return FileSignature{}, fmt.Errorf("signature key %q: %w", key, err)
	}
	duration, err := strconv.ParseInt(millis, 10, 64)
	if err != nil || duration < 0 {
		return FileSignature{}, fmt.Errorf("signature key %q: invalid duration", key)
	}
	return FileSignature{ContentHash: strings.ToLower(hash), DurationMillis: duration}, nil
}

// SignatureError reports a file whose signature could not be computed.
type SignatureError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SignatureError) Error() string {
	msg := fmt.Sprintf("signature %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SignatureError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for logging and run summaries.
func (e *SignatureError) ErrorKind() string { return "signature" }

// ErrTooShort is wrapped by SignatureError when strict sampling rejects a file.
var ErrTooShort = errors.New("file shorter than two samples")

// Engine computes file signatures with a fixed sampling budget.
type Engine struct {
	sampleBytes int64
	strict      bool
}

// NewEngine returns an Engine. sampleBytes <= 0 selects DefaultSampleBytes.
// strict rejects files too short for prefix/suffix sampling.
func NewEngine(sampleBytes int64, strict bool) *Engine {
	if sampleBytes <= 0 {
		sampleBytes = DefaultSampleBytes
	}
	return &Engine{sampleBytes: sampleBytes, strict: strict}
}

// Compute reads at most two samples from path and combines their digest with
// the probed duration.
func (e *Engine) Compute(ctx context.Context, path string, durationMillis int64) (FileSignature, error) {
	if durationMillis <= 0 {
		return FileSignature{}, &SignatureError{Path: path, Reason: "missing duration"}
	}
	return e.hash(ctx, path, durationMillis)
}

// ComputeUnprobed hashes content for a file whose duration is unknown because
// probing failed. The result has DurationMillis 0 and must only key failure
// records.
func (e *Engine) ComputeUnprobed(ctx context.Context, path string) (FileSignature, error) {
	return e.hash(ctx, path, 0)
}

// PathSignature keys a failure record for a file whose content could not be
// read at all. It lives in its own hash domain so it never equals a content
// signature.
func PathSignature(path string) FileSignature {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sum := sha256.Sum256([]byte(string(SamplingPath) + "\x00" + path))
	return FileSignature{ContentHash: hex.EncodeToString(sum[:]), Sampling: SamplingPath}
}

func (e *Engine) hash(ctx context.Context, path string, durationMillis int64) (FileSignature, error) {
	if err := ctx.Err(); err != nil {
		return FileSignature{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return FileSignature{}, &SignatureError{Path: path, Reason: "unreadable", Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return FileSignature{}, &SignatureError{Path: path, Reason: "unreadable", Err: err}
	}
	size := info.Size()
	if size == 0 {
		return FileSignature{}, &SignatureError{Path: path, Reason: "empty file"}
	}

	sampling := SamplingEnds
	if size < 2*e.sampleBytes {
		if e.strict {
			return FileSignature{}, &SignatureError{Path: path, Reason: "too short for sampling", Err: ErrTooShort}
		}
		sampling = SamplingWhole
	}

	h := sha256.New()
	_, _ = h.Write([]byte(sampling))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatInt(size, 10)))
	_, _ = h.Write([]byte{0})

	switch sampling {
	case SamplingWhole:
		if _, err := io.Copy(h, file); err != nil {
			return FileSignature{}, &SignatureError{Path: path, Reason: "read failed", Err: err}
		}
	case SamplingEnds:
		if _, err := io.Copy(h, io.NewSectionReader(file, 0, e.sampleBytes)); err != nil {
			return FileSignature{}, &SignatureError{Path: path, Reason: "read prefix failed", Err: err}
		}
		if _, err := io.Copy(h, io.NewSectionReader(file, size-e.sampleBytes, e.sampleBytes)); err != nil {
			return FileSignature{}, &SignatureError{Path: path, Reason: "read suffix failed", Err: err}
		}
	}

	return FileSignature{
		ContentHash:    hex.EncodeToString(h.Sum(nil)),
		DurationMillis: durationMillis,
		Sampling:       sampling,
	}, nil
}
