package language

import (
	"fmt"
	"strings"
)

// AutoDetect is the source-language choice that sends no hint.
const AutoDetect = "Auto-detect"

// Language is a selectable language: a display name sent to the translator
// and an ISO-639-1 code sent to the transcriber.
type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

var supported = []Language{
	{"English", "en"},
	{"Spanish", "es"},
	{"French", "fr"},
	{"German", "de"},
	{"Italian", "it"},
	{"Portuguese", "pt"},
	{"Chinese", "zh"},
	{"Japanese", "ja"},
	{"Korean", "ko"},
	{"Russian", "ru"},
	{"Arabic", "ar"},
	{"Hindi", "hi"},
}

// All returns the supported languages in display order.
func All() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Lookup finds a language by display name or code, case-insensitively.
func Lookup(s string) (Language, bool) {
	s = strings.TrimSpace(s)
	for _, l := range supported {
		if strings.EqualFold(l.Name, s) || strings.EqualFold(l.Code, s) {
			return l, true
		}
	}
	return Language{}, false
}

// Source resolves a source-language selection to a transcription hint.
// Empty, "auto" and "Auto-detect" yield "" (let the service detect it).
func Source(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") || strings.EqualFold(s, AutoDetect) {
		return "", nil
	}
	l, ok := Lookup(s)
	if !ok {
		return "", fmt.Errorf("unsupported source language %q", s)
	}
	return l.Code, nil
}

// Target resolves a target-language selection. A target is required.
func Target(s string) (Language, error) {
	if strings.TrimSpace(s) == "" {
		return Language{}, fmt.Errorf("target language is required")
	}
	l, ok := Lookup(s)
	if !ok {
		return Language{}, fmt.Errorf("unsupported target language %q", s)
	}
	return l, nil
}
