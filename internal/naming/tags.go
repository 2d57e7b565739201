package naming

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/tracks"
)

// UnknownTag stands in for a resolution or language that could not be determined.
const UnknownTag = "UNK"

// ResolutionTag maps a frame size to the first bucket whose width or height
// threshold it meets, so letterboxed 3840x1608 is still 4K. Portrait frames
// are measured as if rotated, so 1080x1920 is FHD rather than 2K.
func ResolutionTag(buckets []config.ResolutionBucket, width, height int) string {
	if width <= 0 || height <= 0 {
		return UnknownTag
	}
	if height > width {
		width, height = height, width
	}
	if len(buckets) == 0 {
		buckets = config.DefaultResolutions
	}
	for _, bucket := range buckets {
		if (bucket.MinWidth > 0 && width >= bucket.MinWidth) || (bucket.MinHeight > 0 && height >= bucket.MinHeight) {
			return bucket.Tag
		}
	}
	return "SD"
}

var codecShorthand = map[string]string{
	"truehd": "TRUEHD",
	"dts":    "DTS",
	"eac3":   "DDP",
	"ac3":    "AC3",
	"aac":    "AAC",
	"flac":   "FLAC",
	"opus":   "OPUS",
	"pcm":    "PCM",
	"mp3":    "MP3",
	"vorbis": "VORBIS",
}

// AudioTag renders the codec shorthand for a track. Surround tracks (six or
// more channels) use the bare shorthand; smaller layouts append it, as in AAC2.0.
func AudioTag(track tracks.Descriptor) string {
	codec := tracks.CodecFamily(track.Codec)
	tag, ok := codecShorthand[codec]
	if !ok {
		tag = strings.ToUpper(sanitizeToken(codec))
	}
	if track.Channels > 0 && track.Channels < 6 {
		tag += LayoutTag(track.Channels)
	}
	return tag
}

// LayoutTag renders a channel count as a speaker layout such as "5.1" or "2.0".
func LayoutTag(channels int) string {
	switch {
	case channels <= 0:
		return ""
	case channels == 3:
		return "2.1"
	case channels >= 6:
		return strconv.Itoa(channels-1) + ".1"
	default:
		return strconv.Itoa(channels) + ".0"
	}
}

var filenameYear = regexp.MustCompile(`(?:^|[\(\[\.\-_,\s])((?:19|20)\d{2})(?:[\)\]\.\-_,+\s]|$)`)

// YearFromFilename returns the last delimited 19xx/20xx year in a file stem,
// or 0. The last match wins so "2001.A.Space.Odyssey.1968" yields 1968.
func YearFromFilename(stem string) int {
	matches := filenameYear.FindAllStringSubmatch(stem, -1)
	if len(matches) == 0 {
		return 0
	}
	year, _ := strconv.Atoi(matches[len(matches)-1][1])
	return year
}

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// Sanitize replaces characters that are invalid in filenames on common
// filesystems and trims trailing dots and spaces.
func Sanitize(name string) string {
	cleaned := unsafeChars.ReplaceAllString(name, "_")
	return strings.TrimRight(strings.TrimSpace(cleaned), ". ")
}

func sanitizeToken(value string) string {
	return strings.ReplaceAll(Sanitize(value), "_", "")
}
