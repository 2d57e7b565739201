package naming

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/language"
	"github.com/HThanh-how/mkvprocesser/internal/tracks"
)

// OutputExt is the container extension of every audio output.
const OutputExt = ".mkv"

// Input carries everything naming depends on for one file.
type Input struct {
	SourcePath     string
	Classification tracks.Classification
	Width          int
	Height         int
	// Year from container metadata; 0 falls back to the filename.
	Year  int
	Title string
}

// Decision is the naming outcome for the primary audio track.
type Decision struct {
	ResolutionTag string `json:"resolution_tag"`
	LanguageTag   string `json:"language_tag"`
	AudioTag      string `json:"audio_tag"`
	YearTag       string `json:"year_tag,omitempty"`
	OriginalStem  string `json:"original_stem"`
	FinalName     string `json:"final_name"`
}

// Target is one track paired with its reserved output path.
type Target struct {
	Track tracks.Descriptor
	Dir   string
	Name  string
}

// Path returns the full output path.
func (t Target) Path() string {
	return filepath.Join(t.Dir, t.Name)
}

// Plan is the naming decision plus an output target for every retained track.
type Plan struct {
	Decision Decision
	Targets  []Target
}

// Router picks the output folder for a track.
type Router struct {
	DubbedLanguage string
	DubbedDir      string
	OriginalDir    string
	SubtitleDir    string
}

// RouterFromConfig builds a Router from the paths and routing sections.
func RouterFromConfig(cfg *config.Config) Router {
	return Router{
		DubbedLanguage: language.Normalize(cfg.Routing.DubbedLanguage),
		DubbedDir:      cfg.DubbedOutputDir(),
		OriginalDir:    cfg.OriginalOutputDir(),
		SubtitleDir:    cfg.SubtitleOutputDir(),
	}
}

// Dir returns the folder for track.
func (r Router) Dir(track tracks.Descriptor) string {
	if track.Kind == tracks.KindSubtitle {
		return r.SubtitleDir
	}
	if r.DubbedLanguage != "" && r.DubbedLanguage != language.Unknown && track.Language == r.DubbedLanguage {
		return r.DubbedDir
	}
	return r.OriginalDir
}

// Engine computes names and reserves them in a run-scoped claim set.
type Engine struct {
	template Template
	buckets  []config.ResolutionBucket
	router   Router
	claims   *Claims
}

// NewEngine parses the naming template. claims must be shared by every file
// in one run and discarded afterwards.
func NewEngine(cfg *config.Config, claims *Claims) (*Engine, error) {
	tmpl, err := ParseTemplate(cfg.Naming.Template)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		claims = NewClaims()
	}
	return &Engine{
		template: tmpl,
		buckets:  cfg.Naming.Resolutions,
		router:   RouterFromConfig(cfg),
		claims:   claims,
	}, nil
}

// Decide computes the unreserved name for the primary audio track. It does
// not touch the claim set.
func (e *Engine) Decide(in Input) Decision {
	stem := Sanitize(strings.TrimSuffix(filepath.Base(in.SourcePath), filepath.Ext(in.SourcePath)))
	year := in.Year
	if year == 0 {
		year = YearFromFilename(stem)
	}
	d := Decision{
		ResolutionTag: ResolutionTag(e.buckets, in.Width, in.Height),
		LanguageTag:   language.Abbrev(in.Classification.Primary.Language),
		AudioTag:      AudioTag(in.Classification.Primary),
		OriginalStem:  stem,
	}
	if year > 0 {
		d.YearTag = strconv.Itoa(year)
	}
	d.FinalName = e.render(d, in.Classification.Primary, in.Title)
	return d
}

func (e *Engine) render(d Decision, track tracks.Descriptor, title string) string {
	name := e.template.Render(map[string]string{
		FieldResolution: d.ResolutionTag,
		FieldLanguage:   d.LanguageTag,
		FieldAudio:      d.AudioTag,
		FieldChannels:   LayoutTag(track.Channels),
		FieldYear:       d.YearTag,
		FieldTitle:      Sanitize(title),
		FieldStem:       d.OriginalStem,
	})
	return Sanitize(name) + OutputExt
}

// Plan decides the primary name and reserves an output name for every
// retained track. The primary track keeps the decision's name (with a numeric
// suffix on collision); other audio tracks get their own language and codec
// tags; subtitles become sidecars named after the primary output.
func (e *Engine) Plan(in Input) Plan {
	decision := e.Decide(in)
	primary := in.Classification.Primary

	primaryDir := e.router.Dir(primary)
	decision.FinalName = e.claims.Claim(primaryDir, decision.FinalName)
	plan := Plan{Decision: decision}
	plan.Targets = append(plan.Targets, Target{Track: primary, Dir: primaryDir, Name: decision.FinalName})

	for _, track := range in.Classification.Audio {
		if track.Index == primary.Index {
			continue
		}
		variant := decision
		variant.LanguageTag = language.Abbrev(track.Language)
		variant.AudioTag = AudioTag(track)
		dir := e.router.Dir(track)
		name := e.claims.Claim(dir, e.render(variant, track, in.Title))
		plan.Targets = append(plan.Targets, Target{Track: track, Dir: dir, Name: name})
	}

	base := strings.TrimSuffix(decision.FinalName, OutputExt)
	for _, sub := range in.Classification.Subtitles {
		dir := e.router.Dir(sub)
		name := e.claims.Claim(dir, SubtitleName(base, sub))
		plan.Targets = append(plan.Targets, Target{Track: sub, Dir: dir, Name: name})
	}
	return plan
}

// SubtitleName renders "<base>.<lang>.<ext>" for a subtitle sidecar.
func SubtitleName(base string, sub tracks.Descriptor) string {
	lang := sub.Language
	if lang == "" || lang == language.Unknown {
		lang = "und"
	}
	return base + "." + lang + SubtitleExt(sub.Codec)
}

// SubtitleExt maps a subtitle codec to the sidecar extension it is written as.
// Text codecs without a native sidecar format are converted to SubRip; bitmap
// codecs other than PGS are kept in a Matroska subtitle container.
func SubtitleExt(codec string) string {
	switch strings.ToLower(codec) {
	case "subrip", "srt", "mov_text", "text":
		return ".srt"
	case "ass", "ssa":
		return ".ass"
	case "webvtt":
		return ".vtt"
	case "hdmv_pgs_subtitle":
		return ".sup"
	default:
		return ".mks"
	}
}
