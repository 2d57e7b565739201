// Package ffprobe runs ffprobe and decodes its JSON stream listing.
//
// Inspect shells out and parses; Parse decodes captured output. Result
// exposes the video frame size, the container duration in whole
// milliseconds and the release year tag. Failures surface as *ProbeError,
// with Transient set for timeouts worth retrying.
package ffprobe
