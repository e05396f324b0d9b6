package policy

import "strings"

// SecurityPolicy gates file modifications and sanitises worker-bound text.
type SecurityPolicy struct {
	// SanitizePrompts enables redaction of prompt-injection markers.
	SanitizePrompts bool
	// AllowedFileExtensions is the modification allow-list. Empty means
	// everything is allowed.
	AllowedFileExtensions []string
}

// injectionMarkers is the redacted marker set. Matching is case-insensitive.
var injectionMarkers = []string{
	"ignore previous instructions",
	"disregard above",
	"system prompt",
}

// filteredToken replaces every redacted marker.
const filteredToken = "[FILTERED]"

// DefaultSecurityPolicy returns the documented defaults.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		SanitizePrompts:       true,
		AllowedFileExtensions: []string{".go", ".py", ".md", ".txt", ".yaml", ".yml", ".json"},
	}
}

// IsFileAllowed reports whether the path's extension is on the allow-list.
func (p SecurityPolicy) IsFileAllowed(path string) bool {
	if len(p.AllowedFileExtensions) == 0 {
		return true
	}
	for _, ext := range p.AllowedFileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Sanitize redacts prompt-injection markers to the literal [FILTERED] token.
// A NO-OP when sanitisation is disabled.
func (p SecurityPolicy) Sanitize(text string) string {
	if !p.SanitizePrompts {
		return text
	}
	out := text
	for _, marker := range injectionMarkers {
		for {
			idx := strings.Index(strings.ToLower(out), marker)
			if idx < 0 {
				break
			}
			out = out[:idx] + filteredToken + out[idx+len(marker):]
		}
	}
	return out
}
