package conversation

import (
	"regexp"
	"strings"
	"unicode"
)

// Explicit introduction phrases, tried in order against the lowercased
// message. A bare single word is handled separately with stricter checks.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`my name is\s+(\w+)`),
	regexp.MustCompile(`i'm\s+(\w+)`),
	regexp.MustCompile(`i am\s+(\w+)`),
	regexp.MustCompile(`call me\s+(\w+)`),
	regexp.MustCompile(`it's\s+(\w+)`),
	regexp.MustCompile(`this is\s+(\w+)`),
	regexp.MustCompile(`name:\s*(\w+)`),
}

var singleWordRE = regexp.MustCompile(`^(\w+)$`)

// Common words that follow an introduction phrase without being a name.
var nonNames = map[string]bool{
	"hi": true, "hello": true, "hey": true, "good": true, "morning": true,
	"afternoon": true, "evening": true,
	"yes": true, "no": true, "ok": true, "okay": true, "sure": true,
	"please": true, "help": true, "thanks": true, "thank": true,
	"what": true, "how": true, "when": true, "where": true, "why": true,
	"who": true, "which": true,
	"vreg": true, "registration": true, "vehicle": true, "portal": true,
	"login": true, "password": true,
	"payment": true, "certificate": true, "support": true, "problem": true,
	"issue": true, "error": true,
	"can": true, "will": true, "should": true, "could": true, "would": true,
	"need": true, "want": true, "like": true,
	"get": true, "have": true, "make": true, "take": true, "give": true,
	"find": true, "know": true, "think": true,
	"see": true, "look": true, "check": true, "try": true, "use": true,
	"work": true, "go": true, "come": true,
}

var greetingWords = []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening"}

// ExtractName pulls a user name out of a chat message, if the message looks
// like an introduction ("my name is Ada", "I'm Ada", or just "Ada"). The
// returned name is capitalized. The boolean reports whether a name was found.
func ExtractName(message string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))

	for _, re := range namePatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if len(candidate) >= 2 && !nonNames[candidate] {
			return capitalize(candidate), true
		}
	}

	// A lone word only counts as a name when the user typed it capitalized
	// and it contains nothing but letters.
	if m := singleWordRE.FindStringSubmatch(lower); m != nil {
		candidate := m[1]
		original := strings.TrimSpace(message)
		if len(candidate) >= 2 && !nonNames[candidate] && startsUpper(original) && isAlpha(original) {
			return capitalize(candidate), true
		}
	}

	return "", false
}

// IsGreeting reports whether the message contains a greeting phrase. The
// chatbot greets back before asking for a name in that case.
func IsGreeting(message string) bool {
	lower := strings.ToLower(message)
	for _, greeting := range greetingWords {
		if strings.Contains(lower, greeting) {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return strings.ToUpper(string(runes[0])) + strings.ToLower(string(runes[1:]))
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
