package transcribe

import "sort"

// ModelInfo describes one entry of the model catalog exposed through the HTTP
// options endpoint.
type ModelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var catalog = []ModelInfo{
	{Name: "tiny", Description: "Tiny (fast, less accurate)"},
	{Name: "base", Description: "Base (balanced speed and accuracy)"},
	{Name: "small", Description: "Small (better accuracy, slower)"},
	{Name: "medium", Description: "Medium (good accuracy, slower)"},
	{Name: "large-v3", Description: "Large (best accuracy, slowest)"},
}

func Models() []ModelInfo {
	out := make([]ModelInfo, len(catalog))
	copy(out, catalog)
	return out
}

// Languages maps supported language codes to display names. An empty hint
// means auto-detection, which accepts codes beyond this list; the map exists
// for the UI surface only.
var Languages = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
	"ru": "Russian",
	"zh": "Chinese",
	"ja": "Japanese",
	"ar": "Arabic",
	"hi": "Hindi",
	"ko": "Korean",
	"tr": "Turkish",
	"pl": "Polish",
	"vi": "Vietnamese",
	"sv": "Swedish",
	"uk": "Ukrainian",
	"fa": "Persian",
}

func LanguageCodes() []string {
	codes := make([]string, 0, len(Languages))
	for code := range Languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
