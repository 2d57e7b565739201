package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
)

// Unknown is the normalized code for tracks without a usable language tag.
const Unknown = "unknown"

type entry struct {
	code2   string // ISO 639-1 (2-letter)
	code3   string // ISO 639-2/T (3-letter)
	alt3    string // ISO 639-2/B bibliographic form (e.g. "fre" vs "fra")
	abbrev  string // naming tag, when it differs from upper(code3)
	display string
}

var languages = []entry{
	{"en", "eng", "", "", "English"},
	{"vi", "vie", "", "", "Vietnamese"},
	{"es", "spa", "", "", "Spanish"},
	{"fr", "fra", "fre", "", "French"},
	{"de", "deu", "ger", "", "German"},
	{"it", "ita", "", "", "Italian"},
	{"pt", "por", "", "", "Portuguese"},
	{"ja", "jpn", "", "", "Japanese"},
	{"ko", "kor", "", "", "Korean"},
	{"zh", "zho", "chi", "CHI", "Chinese"},
	{"ru", "rus", "", "", "Russian"},
	{"th", "tha", "", "", "Thai"},
	{"id", "ind", "", "", "Indonesian"},
	{"ms", "msa", "may", "", "Malay"},
	{"ar", "ara", "", "", "Arabic"},
	{"hi", "hin", "", "", "Hindi"},
	{"nl", "nld", "dut", "", "Dutch"},
	{"pl", "pol", "", "", "Polish"},
	{"tr", "tur", "", "", "Turkish"},
	{"sv", "swe", "", "", "Swedish"},
	{"da", "dan", "", "", "Danish"},
	{"no", "nor", "", "", "Norwegian"},
	{"fi", "fin", "", "", "Finnish"},
	{"cs", "ces", "cze", "", "Czech"},
	{"el", "ell", "gre", "", "Greek"},
	{"he", "heb", "", "", "Hebrew"},
	{"fa", "fas", "per", "", "Persian"},
}

// Index maps built at init time.
var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
	}
}

func lookup(code string) *entry {
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	return nil
}

// Normalize maps a container language tag to its ISO 639-2/T code. Empty,
// undetermined and unparseable tags become Unknown.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "\u0000", "")))
	switch code {
	case "", "und", "unknown", "mis", "mul", "zxx", "xx":
		return Unknown
	}
	if e := lookup(code); e != nil {
		return e.code3
	}
	// IETF forms such as "pt-BR" or codes outside the table.
	base, err := xlanguage.ParseBase(strings.SplitN(code, "-", 2)[0])
	if err != nil {
		return Unknown
	}
	iso3 := base.ISO3()
	if iso3 == "" || iso3 == "und" {
		return Unknown
	}
	if e := lookup(iso3); e != nil {
		return e.code3
	}
	return iso3
}

// Abbrev returns the upper-case naming tag for a language code: "VIE" for
// Vietnamese, "CHI" for Chinese, "UNK" for unknown.
func Abbrev(code string) string {
	normalized := Normalize(code)
	if normalized == Unknown {
		return "UNK"
	}
	if e := lookup(normalized); e != nil && e.abbrev != "" {
		return e.abbrev
	}
	return strings.ToUpper(normalized)
}

// DisplayName returns a human-readable language name for any recognized code.
func DisplayName(code string) string {
	normalized := Normalize(code)
	if normalized == Unknown {
		return "Unknown"
	}
	if e := lookup(normalized); e != nil {
		return e.display
	}
	return strings.ToUpper(normalized)
}

// ExtractFromTags returns the raw language value from stream metadata tags.
// Checks common tag keys: language, LANGUAGE, Language, language_ietf, lang, LANG.
func ExtractFromTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"}
	for _, key := range keys {
		if value, ok := tags[key]; ok {
			value = strings.TrimSpace(strings.ReplaceAll(value, "\u0000", ""))
			if value != "" {
				return strings.ToLower(value)
			}
		}
	}
	return ""
}

// NormalizeList deduplicates and normalizes a list of language codes to ISO 639-2/T.
func NormalizeList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if strings.TrimSpace(code) == "" {
			continue
		}
		value := Normalize(code)
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		normalized = append(normalized, value)
	}
	return normalized
}
