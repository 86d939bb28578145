package fixer

import (
	"path/filepath"
	"strings"
)

// languageByExt maps lower-case file extensions (without the dot) to the
// backend's language tags.
var languageByExt = map[string]string{
	"java":   "java",
	"kt":     "kotlin",
	"kts":    "kotlin",
	"js":     "javascript",
	"jsx":    "javascript",
	"ts":     "javascript",
	"tsx":    "javascript",
	"py":     "python",
	"rb":     "ruby",
	"go":     "go",
	"json":   "json",
	"gradle": "groovy",
	"toml":   "toml",
	"mcmeta": "json",
}

// LanguageFor returns the language tag for file, or fallback when the
// extension is unknown.
func LanguageFor(file, fallback string) string {
	if lang, ok := languageByExt[ext(file)]; ok {
		return lang
	}
	return fallback
}

// IsSourceFile reports whether file has an extension in the language table.
func IsSourceFile(file string) bool {
	_, ok := languageByExt[ext(file)]
	return ok
}

func ext(file string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(file), "."))
}
