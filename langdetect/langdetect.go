// Package langdetect provides best-effort language detection for
// transcripts whose engine did not report a language.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Undetermined is returned when no language could be detected.
const Undetermined = "auto"

var (
	buildOnce sync.Once
	detector  lingua.LanguageDetector
)

// A bounded set keeps model memory reasonable; dictation in other
// languages still transcribes, it just is not tagged.
var candidates = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Dutch,
	lingua.Polish,
	lingua.Turkish,
	lingua.Ukrainian,
	lingua.Russian,
	lingua.Arabic,
	lingua.Hindi,
	lingua.Japanese,
	lingua.Korean,
	lingua.Chinese,
}

func get() lingua.LanguageDetector {
	buildOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidates...).
			Build()
	})
	return detector
}

// Detect returns the ISO 639-1 code and English display name of the
// text's language, or (Undetermined, "Unknown") when detection fails.
func Detect(text string) (code, name string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Undetermined, "Unknown"
	}

	lang, ok := get().DetectLanguageOf(text)
	if !ok {
		return Undetermined, "Unknown"
	}

	code = strings.ToLower(lang.IsoCode639_1().String())
	tag := language.Make(code)
	name = display.English.Tags().Name(tag)
	if name == "" {
		name = "Unknown"
	}
	return code, name
}
