// Package signature fingerprints media files by content.
//
// A signature is a SHA-256 digest over the first and last sample of a file
// plus its size, combined with the exact playback duration in milliseconds.
// Paths never contribute, so a renamed or moved file keeps its signature.
// Files shorter than two samples are hashed whole under a separate domain
// prefix unless strict sampling is enabled.
package signature
