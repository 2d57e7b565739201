// Package pipeline runs the per-file workflow over a folder: scan, probe,
// sign, check the manifest, classify, name, extract and record.
//
// Files are processed by a bounded worker pool; the work for one file is
// sequential. Cancelling the Run context stops dispatch while in-flight files
// finish and record their outcome. A separate hard-stop context aborts
// in-flight extraction; aborted files are reported as unrecorded and picked
// up again by the next run.
package pipeline
