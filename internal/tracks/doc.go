// Package tracks classifies the audio and subtitle streams of one media file.
//
// Audio is ranked by a configurable codec preference, then by channel count,
// then by stream index; only the best track per language survives. Subtitles
// are kept once per language with text codecs preferred over bitmap codecs.
// Video, data and attachment streams are reported as rejections rather than
// dropped silently. A payload without any audio is a ClassificationError.
package tracks
