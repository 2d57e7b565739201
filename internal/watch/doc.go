// Package watch re-runs processing when media files appear in the input
// folder. Filesystem events are debounced so a file being copied triggers one
// run after the copy goes quiet.
package watch
