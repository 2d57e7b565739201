// Package naming derives canonical output names such as
// "4K_VIE_DTS_2019_Movie.mkv" from a file's classification, frame size,
// release year and original name.
//
// Names are reserved in a run-scoped Claims set seeded from a one-time listing
// of each target folder, so two workers never pick the same output and
// existing files are never overwritten. Collisions get a numeric suffix.
package naming
