package naming_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/naming"
	"github.com/HThanh-how/mkvprocesser/internal/testsupport"
	"github.com/HThanh-how/mkvprocesser/internal/tracks"
)

func vieDTS() tracks.Classification {
	primary := tracks.Descriptor{Index: 1, Kind: tracks.KindAudio, Codec: "dts", Language: "vie", Channels: 6}
	return tracks.Classification{
		Audio:   []tracks.Descriptor{primary},
		Primary: primary,
	}
}

func newEngine(t *testing.T, cfg *config.Config) *naming.Engine {
	t.Helper()
	engine, err := naming.NewEngine(cfg, naming.NewClaims())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func TestDecideCanonicalName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := newEngine(t, cfg)

	decision := engine.Decide(naming.Input{
		SourcePath:     "/in/Movie.mkv",
		Classification: vieDTS(),
		Width:          3840,
		Height:         2160,
	})
	if decision.FinalName != "4K_VIE_DTS_Movie.mkv" {
		t.Fatalf("FinalName = %q, want 4K_VIE_DTS_Movie.mkv", decision.FinalName)
	}
	if decision.YearTag != "" {
		t.Fatalf("expected empty year tag, got %q", decision.YearTag)
	}
}

func TestDecideYearSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := newEngine(t, cfg)

	tests := []struct {
		name string
		path string
		year int
		want string
	}{
		{name: "metadata year", path: "/in/Movie.mkv", year: 2019, want: "4K_VIE_DTS_2019_Movie.mkv"},
		{name: "filename year", path: "/in/Movie.2008.mkv", want: "4K_VIE_DTS_2008_Movie.2008.mkv"},
		{name: "metadata wins", path: "/in/Movie (2008).mkv", year: 2010, want: "4K_VIE_DTS_2010_Movie (2008).mkv"},
		{name: "no year", path: "/in/Movie.mkv", want: "4K_VIE_DTS_Movie.mkv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Decide(naming.Input{
				SourcePath:     tt.path,
				Classification: vieDTS(),
				Width:          3840,
				Height:         2160,
				Year:           tt.year,
			}).FinalName
			if got != tt.want {
				t.Fatalf("FinalName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecideUnknownResolution(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := newEngine(t, cfg)

	got := engine.Decide(naming.Input{SourcePath: "/in/Movie.mkv", Classification: vieDTS()}).FinalName
	if got != "UNK_VIE_DTS_Movie.mkv" {
		t.Fatalf("FinalName = %q", got)
	}
}

func TestPlanCollisionSuffix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutputDir, "4K_VIE_DTS_Movie.mkv"), 16)

	engine := newEngine(t, cfg)
	in := naming.Input{SourcePath: "/in/Movie.mkv", Classification: vieDTS(), Width: 3840, Height: 2160}

	first := engine.Plan(in)
	if first.Decision.FinalName != "4K_VIE_DTS_Movie_1.mkv" {
		t.Fatalf("first FinalName = %q, want suffix _1", first.Decision.FinalName)
	}
	second := engine.Plan(in)
	if second.Decision.FinalName != "4K_VIE_DTS_Movie_2.mkv" {
		t.Fatalf("second FinalName = %q, want suffix _2", second.Decision.FinalName)
	}
}

func TestPlanConcurrentClaimsAreUnique(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := newEngine(t, cfg)
	in := naming.Input{SourcePath: "/in/Movie.mkv", Classification: vieDTS(), Width: 1920, Height: 1080}

	const workers = 16
	names := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			names[i] = engine.Plan(in).Decision.FinalName
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, workers)
	for _, name := range names {
		if _, dup := seen[name]; dup {
			t.Fatalf("duplicate claimed name %q", name)
		}
		seen[name] = struct{}{}
	}
}

func TestPlanRoutesTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSplitOutputs())
	engine := newEngine(t, cfg)

	primary := tracks.Descriptor{Index: 1, Kind: tracks.KindAudio, Codec: "truehd", Language: "eng", Channels: 8}
	dub := tracks.Descriptor{Index: 2, Kind: tracks.KindAudio, Codec: "aac", Language: "vie", Channels: 2}
	sub := tracks.Descriptor{Index: 3, Kind: tracks.KindSubtitle, Codec: "subrip", Language: "vie"}
	plan := engine.Plan(naming.Input{
		SourcePath: "/in/Film.2021.mkv",
		Classification: tracks.Classification{
			Audio:     []tracks.Descriptor{primary, dub},
			Subtitles: []tracks.Descriptor{sub},
			Primary:   primary,
		},
		Width:  1920,
		Height: 800,
	})

	if len(plan.Targets) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(plan.Targets))
	}
	want := []struct {
		dir  string
		name string
	}{
		{cfg.Paths.OriginalDir, "FHD_ENG_TRUEHD_2021_Film.2021.mkv"},
		{cfg.Paths.DubbedDir, "FHD_VIE_AAC2.0_2021_Film.2021.mkv"},
		{cfg.Paths.SubtitleDir, "FHD_ENG_TRUEHD_2021_Film.2021.vie.srt"},
	}
	for i, w := range want {
		got := plan.Targets[i]
		if got.Dir != w.dir || got.Name != w.name {
			t.Fatalf("target %d = %s/%s, want %s/%s", i, got.Dir, got.Name, w.dir, w.name)
		}
	}
}

func TestResolutionTag(t *testing.T) {
	tests := []struct {
		width, height int
		want          string
	}{
		{3840, 2160, "4K"},
		{3840, 1608, "4K"},
		{1920, 1080, "FHD"},
		{1440, 1080, "FHD"},
		{1280, 720, "HD"},
		{720, 576, "SD"},
		{1080, 1920, "FHD"},
		{2160, 3840, "4K"},
		{720, 1280, "HD"},
		{0, 0, naming.UnknownTag},
	}
	for _, tt := range tests {
		if got := naming.ResolutionTag(config.DefaultResolutions, tt.width, tt.height); got != tt.want {
			t.Fatalf("ResolutionTag(%d,%d) = %q, want %q", tt.width, tt.height, got, tt.want)
		}
	}
}

func TestAudioTag(t *testing.T) {
	tests := []struct {
		codec    string
		channels int
		want     string
	}{
		{"dts", 6, "DTS"},
		{"eac3", 8, "DDP"},
		{"aac", 2, "AAC2.0"},
		{"ac3", 3, "AC32.1"},
		{"pcm_s24le", 6, "PCM"},
		{"dts", 0, "DTS"},
	}
	for _, tt := range tests {
		got := naming.AudioTag(tracks.Descriptor{Kind: tracks.KindAudio, Codec: tt.codec, Channels: tt.channels})
		if got != tt.want {
			t.Fatalf("AudioTag(%s,%d) = %q, want %q", tt.codec, tt.channels, got, tt.want)
		}
	}
}

func TestYearFromFilename(t *testing.T) {
	tests := map[string]int{
		"Movie.2019.2160p":          2019,
		"Movie (1999)":              1999,
		"2001.A.Space.Odyssey.1968": 1968,
		"Movie20190":                0,
		"Movie":                     0,
	}
	for stem, want := range tests {
		if got := naming.YearFromFilename(stem); got != want {
			t.Fatalf("YearFromFilename(%q) = %d, want %d", stem, got, want)
		}
	}
}

func TestSanitize(t *testing.T) {
	got := naming.Sanitize(`What: "Now"? a/b. `)
	if strings.ContainsAny(got, `:"?/`) {
		t.Fatalf("Sanitize left unsafe chars: %q", got)
	}
	if strings.HasSuffix(got, ".") || strings.HasSuffix(got, " ") {
		t.Fatalf("Sanitize left trailing dot or space: %q", got)
	}
}

func TestTemplateRender(t *testing.T) {
	tmpl, err := naming.ParseTemplate("{resolution}_{language}_{audio}_{year}_{stem}")
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	got := tmpl.Render(map[string]string{"resolution": "4K", "language": "VIE", "audio": "DTS", "stem": "Movie"})
	if got != "4K_VIE_DTS_Movie" {
		t.Fatalf("Render = %q", got)
	}
	got = tmpl.Render(map[string]string{"language": "VIE", "audio": "DTS", "stem": "Movie"})
	if got != "VIE_DTS_Movie" {
		t.Fatalf("Render with empty leading field = %q", got)
	}

	if _, err := naming.ParseTemplate("{resolution}_{bogus}"); err == nil {
		t.Fatal("expected unknown placeholder error")
	}
}
