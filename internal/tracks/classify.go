package tracks

import (
	"sort"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/language"
	"github.com/HThanh-how/mkvprocesser/internal/media/ffprobe"
)

// Options controls ranking and filtering.
type Options struct {
	// CodecPreference ranks audio codec families, best first.
	CodecPreference []string
	// ExcludeUnknown drops tracks without a usable language tag.
	ExcludeUnknown bool
	// PreferredLanguage, when retained, becomes the primary audio language.
	PreferredLanguage string
	// AudioLanguages and SubtitleLanguages restrict retained languages when non-empty.
	AudioLanguages    []string
	SubtitleLanguages []string
}

// OptionsFromConfig maps the classifier config section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{CodecPreference: config.DefaultCodecPreference}
	}
	return Options{
		CodecPreference:   cfg.Classifier.CodecPreference,
		ExcludeUnknown:    cfg.Classifier.ExcludeUnknown,
		PreferredLanguage: cfg.Classifier.PreferredLanguage,
		AudioLanguages:    cfg.Classifier.AudioLanguages,
		SubtitleLanguages: cfg.Classifier.SubtitleLanguages,
	}
}

// Classifier turns raw probe streams into ranked track descriptors.
type Classifier struct {
	rank              map[string]int
	excludeUnknown    bool
	preferredLanguage string
	audioLanguages    map[string]struct{}
	subtitleLanguages map[string]struct{}
}

// NewClassifier builds a Classifier. An empty preference list falls back to
// the repository default order.
func NewClassifier(opts Options) *Classifier {
	prefs := opts.CodecPreference
	if len(prefs) == 0 {
		prefs = config.DefaultCodecPreference
	}
	rank := make(map[string]int, len(prefs))
	for i, codec := range prefs {
		family := CodecFamily(codec)
		if _, exists := rank[family]; !exists {
			rank[family] = i
		}
	}
	c := &Classifier{
		rank:              rank,
		excludeUnknown:    opts.ExcludeUnknown,
		audioLanguages:    languageSet(opts.AudioLanguages),
		subtitleLanguages: languageSet(opts.SubtitleLanguages),
	}
	if opts.PreferredLanguage != "" {
		c.preferredLanguage = language.Normalize(opts.PreferredLanguage)
	}
	return c
}

func languageSet(codes []string) map[string]struct{} {
	normalized := language.NormalizeList(codes)
	if len(normalized) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(normalized))
	for _, code := range normalized {
		set[code] = struct{}{}
	}
	return set
}

// Classify partitions streams, ranks audio, keeps the best audio track per
// language and one subtitle track per language.
func (c *Classifier) Classify(streams []ffprobe.Stream) (Classification, error) {
	var (
		result    Classification
		audio     []Descriptor
		subtitles []Descriptor
	)
	for _, stream := range streams {
		switch classOf(stream.CodecType) {
		case classAudio:
			audio = append(audio, describe(stream, KindAudio))
		case classSubtitle:
			subtitles = append(subtitles, describe(stream, KindSubtitle))
		case classVideo:
			// Video is copied alongside each audio track, never classified.
		case classData, classAttachment:
			result.Rejected = append(result.Rejected, Rejection{Index: stream.Index, CodecType: stream.CodecType, Reason: "not extractable"})
		case classUnrecognized:
			result.Rejected = append(result.Rejected, Rejection{Index: stream.Index, CodecType: stream.CodecType, Reason: "unrecognized stream kind"})
		}
	}

	if len(audio) == 0 {
		return Classification{}, &ClassificationError{Reason: "no audio track"}
	}

	c.rankAudio(audio)
	seen := make(map[string]struct{}, len(audio))
	for _, track := range audio {
		if !c.keep(track.Language, c.audioLanguages) {
			result.Discarded = append(result.Discarded, track)
			continue
		}
		if _, dup := seen[track.Language]; dup {
			result.Discarded = append(result.Discarded, track)
			continue
		}
		seen[track.Language] = struct{}{}
		result.Audio = append(result.Audio, track)
	}
	if len(result.Audio) == 0 {
		return Classification{}, &ClassificationError{Reason: "no audio track in a retained language"}
	}

	result.Primary = result.Audio[0]
	if c.preferredLanguage != "" {
		for _, track := range result.Audio {
			if track.Language == c.preferredLanguage {
				result.Primary = track
				break
			}
		}
	}

	result.Subtitles, result.Discarded = c.pickSubtitles(subtitles, result.Discarded)
	return result, nil
}

func describe(stream ffprobe.Stream, kind Kind) Descriptor {
	d := Descriptor{
		Index:    stream.Index,
		Kind:     kind,
		Codec:    CodecFamily(stream.CodecName),
		Language: language.Normalize(language.ExtractFromTags(stream.Tags)),
		Title:    streamTitle(stream.Tags),
		Default:  stream.Disposition["default"] == 1,
	}
	if kind == KindAudio {
		d.Channels = channelCount(stream)
		d.ChannelLayout = stream.ChannelLayout
	}
	return d
}

func (c *Classifier) keep(lang string, allowed map[string]struct{}) bool {
	if lang == language.Unknown && c.excludeUnknown {
		return false
	}
	if allowed == nil {
		return true
	}
	_, ok := allowed[lang]
	return ok
}

func (c *Classifier) codecRank(codec string) int {
	if r, ok := c.rank[codec]; ok {
		return r
	}
	return len(c.rank)
}

// rankAudio orders by codec preference, then channel count descending, then
// stream index ascending.
func (c *Classifier) rankAudio(audio []Descriptor) {
	sort.SliceStable(audio, func(i, j int) bool {
		ri, rj := c.codecRank(audio[i].Codec), c.codecRank(audio[j].Codec)
		if ri != rj {
			return ri < rj
		}
		if audio[i].Channels != audio[j].Channels {
			return audio[i].Channels > audio[j].Channels
		}
		return audio[i].Index < audio[j].Index
	})
}

// pickSubtitles keeps one track per language, preferring text codecs over
// bitmap codecs and then the lowest index. Output is in stream order.
func (c *Classifier) pickSubtitles(subs []Descriptor, discarded []Descriptor) ([]Descriptor, []Descriptor) {
	best := make(map[string]Descriptor, len(subs))
	for _, sub := range subs {
		if !c.keep(sub.Language, c.subtitleLanguages) {
			discarded = append(discarded, sub)
			continue
		}
		current, ok := best[sub.Language]
		if !ok {
			best[sub.Language] = sub
			continue
		}
		if betterSubtitle(sub, current) {
			discarded = append(discarded, current)
			best[sub.Language] = sub
		} else {
			discarded = append(discarded, sub)
		}
	}
	kept := make([]Descriptor, 0, len(best))
	for _, sub := range best {
		kept = append(kept, sub)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Index < kept[j].Index })
	return kept, discarded
}

func betterSubtitle(candidate, current Descriptor) bool {
	ct, cu := IsTextSubtitle(candidate.Codec), IsTextSubtitle(current.Codec)
	if ct != cu {
		return ct
	}
	return candidate.Index < current.Index
}
