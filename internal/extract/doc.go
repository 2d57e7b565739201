// Package extract writes selected tracks to their output files and tracks
// each file through its processing states.
//
// The Orchestrator calls an Extractor once per track, sequentially, retrying
// transient failures (missing source, timeout) with exponential backoff.
// Permanent failures are not retried and never stop sibling tracks. The
// default Extractor shells out to ffmpeg with stream copy and writes through a
// ".part" file that is renamed into place on success.
package extract
