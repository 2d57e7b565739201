// Package language normalizes container language tags.
//
// Track classification works on ISO 639-2/T codes, while output names use
// short upper-case tags. Both conversions live here so the classifier and the
// naming engine agree on what "the same language" means.
package language
