package tracks

import (
	"strconv"
	"strings"

	"github.com/HThanh-how/mkvprocesser/internal/media/ffprobe"
)

// streamClass partitions probe streams before classification.
type streamClass int

const (
	classAudio streamClass = iota
	classSubtitle
	classVideo
	classData
	classAttachment
	classUnrecognized
)

func classOf(codecType string) streamClass {
	switch strings.ToLower(strings.TrimSpace(codecType)) {
	case "audio":
		return classAudio
	case "subtitle":
		return classSubtitle
	case "video":
		return classVideo
	case "data":
		return classData
	case "attachment":
		return classAttachment
	default:
		return classUnrecognized
	}
}

// CodecFamily folds codec name variants into the names used by the
// preference list ("pcm_s24le" ranks as "pcm").
func CodecFamily(codec string) string {
	codec = strings.ToLower(strings.TrimSpace(codec))
	switch {
	case strings.HasPrefix(codec, "pcm_"):
		return "pcm"
	case codec == "mlp":
		return "truehd"
	case codec == "dca":
		return "dts"
	}
	return codec
}

var textSubtitleCodecs = map[string]struct{}{
	"subrip":   {},
	"srt":      {},
	"ass":      {},
	"ssa":      {},
	"webvtt":   {},
	"mov_text": {},
	"text":     {},
}

// IsTextSubtitle reports whether a subtitle codec stores text rather than bitmaps.
func IsTextSubtitle(codec string) bool {
	_, ok := textSubtitleCodecs[strings.ToLower(strings.TrimSpace(codec))]
	return ok
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	return ChannelsFromLayout(stream.ChannelLayout)
}

// ChannelsFromLayout derives a channel count from an ffprobe layout string
// such as "5.1(side)" or "stereo".
func ChannelsFromLayout(layout string) int {
	layout = strings.ToLower(strings.TrimSpace(layout))
	switch layout {
	case "":
		return 0
	case "mono":
		return 1
	case "stereo":
		return 2
	}
	if !strings.Contains(layout, ".") {
		return 0
	}
	total := 0
	for _, part := range strings.Split(layout, ".") {
		part = strings.Trim(part, "abcdefghijklmnopqrstuvwxyz ()")
		if n, err := strconv.Atoi(part); err == nil {
			total += n
		}
	}
	return total
}

func streamTitle(tags map[string]string) string {
	for _, key := range []string{"title", "handler_name"} {
		if value := strings.TrimSpace(ffprobe.Tag(tags, key)); value != "" {
			return value
		}
	}
	return ""
}
