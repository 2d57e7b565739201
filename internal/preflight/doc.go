// Package preflight checks the external tools and folders mkvprocessor
// depends on.
//
// The pipeline calls FreeBytes before extracting each file so a nearly full
// disk fails the file early. The process and watch commands log the
// error from RequireTools as a warning and keep going, and
// "mkvprocessor doctor" prints RunAll and CheckSystemDeps.
package preflight
