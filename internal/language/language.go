// Package language implements the lightweight per-language profile of
// §4.6: Latin-character token frequency scored against per-language
// stopword/greeting/question lexicons (pt, en, es, fr, it, de), plus a
// handful of explicit signal overrides (umlauts, ¿/¡, ã/õ/ç) that can beat
// a weak lexicon match.
//
// Grounded on the teacher's internal/shards/researcher/concept_coverage.go
// keyword-set scoring shape (tokenize, build a keyword set, score against a
// reference set), generalized from a single topic/atom comparison to a
// multi-language scoring table.
package language

import (
	"sort"
	"strings"
)

// Code is an ISO 639-1 language code this package can detect.
type Code string

const (
	Portuguese Code = "pt"
	English    Code = "en"
	Spanish    Code = "es"
	French     Code = "fr"
	Italian    Code = "it"
	German     Code = "de"
	Unknown    Code = "unknown"
)

// Profile is the detection result: a best-guess code, a confidence in
// [0,1], and the full per-language score table for audit purposes
// (recorded verbatim in the meta-summary's language_profile node).
type Profile struct {
	Code       Code
	Confidence float64
	Scores     map[Code]float64
}

type lexicon struct {
	stopwords []string
	greetings []string
	questions []string
}

var lexicons = map[Code]lexicon{
	Portuguese: {
		stopwords: []string{"o", "a", "os", "as", "de", "do", "da", "que", "e", "é", "um", "uma", "em", "para", "com", "não", "se", "como", "você", "voce"},
		greetings: []string{"oi", "olá", "ola", "bom", "dia", "tarde", "noite"},
		questions: []string{"como", "quando", "onde", "quem", "qual", "por que", "porque"},
	},
	English: {
		stopwords: []string{"the", "a", "an", "of", "to", "in", "that", "is", "for", "with", "not", "if", "how", "you"},
		greetings: []string{"hi", "hello", "hey", "good", "morning", "evening"},
		questions: []string{"how", "when", "where", "who", "what", "why"},
	},
	Spanish: {
		stopwords: []string{"el", "la", "los", "las", "de", "que", "y", "es", "un", "una", "en", "para", "con", "no", "como", "usted"},
		greetings: []string{"hola", "buenos", "dias", "días", "buenas", "tardes", "noches"},
		questions: []string{"como", "cómo", "cuando", "cuándo", "donde", "dónde", "quien", "quién", "que", "qué"},
	},
	French: {
		stopwords: []string{"le", "la", "les", "de", "que", "et", "est", "un", "une", "en", "pour", "avec", "pas", "comment", "vous"},
		greetings: []string{"bonjour", "salut", "bonsoir"},
		questions: []string{"comment", "quand", "où", "qui", "quoi", "pourquoi"},
	},
	Italian: {
		stopwords: []string{"il", "lo", "la", "i", "gli", "le", "di", "che", "e", "è", "un", "una", "in", "per", "con", "non", "come", "lei"},
		greetings: []string{"ciao", "buongiorno", "buonasera"},
		questions: []string{"come", "quando", "dove", "chi", "cosa", "perché"},
	},
	German: {
		stopwords: []string{"der", "die", "das", "und", "ist", "ein", "eine", "in", "für", "mit", "nicht", "wie", "sie"},
		greetings: []string{"hallo", "guten", "morgen", "abend", "tag"},
		questions: []string{"wie", "wann", "wo", "wer", "was", "warum"},
	},
}

// codeOrder fixes iteration/tie-break order so Detect is deterministic
// (§8 P4): the lexicon map above has no defined range order.
var codeOrder = []Code{Portuguese, English, Spanish, French, Italian, German}

// Detect scores text against every configured lexicon and returns the
// winning Profile (§4.6). An empty or purely non-Latin input yields
// Unknown with confidence 0.
func Detect(text string) Profile {
	tokens := tokenize(text)
	scores := make(map[Code]float64, len(codeOrder))
	for _, code := range codeOrder {
		scores[code] = score(tokens, lexicons[code])
	}

	applyOverrides(text, scores)

	best, bestScore := Unknown, 0.0
	for _, code := range codeOrder {
		if scores[code] > bestScore {
			best, bestScore = code, scores[code]
		}
	}
	if bestScore <= 0 {
		return Profile{Code: Unknown, Confidence: 0, Scores: scores}
	}
	return Profile{Code: best, Confidence: confidence(bestScore), Scores: scores}
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
	return fields
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r == 'á' || r == 'à' || r == 'â' || r == 'ã' || r == 'ä':
		return true
	case r == 'é' || r == 'è' || r == 'ê' || r == 'ë':
		return true
	case r == 'í' || r == 'ì' || r == 'î' || r == 'ï':
		return true
	case r == 'ó' || r == 'ò' || r == 'ô' || r == 'õ' || r == 'ö':
		return true
	case r == 'ú' || r == 'ù' || r == 'û' || r == 'ü':
		return true
	case r == 'ç' || r == 'ñ' || r == 'ß':
		return true
	}
	return false
}

// score counts how many tokens appear in lex's combined word set,
// weighting greetings/questions double since they are stronger signals
// than generic stopwords, normalized by token count.
func score(tokens []string, lex lexicon) float64 {
	if len(tokens) == 0 {
		return 0
	}
	set := make(map[string]float64)
	for _, w := range lex.stopwords {
		set[w] = 1
	}
	for _, w := range lex.greetings {
		set[w] = 2
	}
	for _, w := range lex.questions {
		set[w] = 2
	}
	var total float64
	for _, t := range tokens {
		total += set[t]
	}
	return total / float64(len(tokens))
}

// applyOverrides lets a handful of unambiguous orthographic signals beat a
// weak lexicon match (§4.6: "de beats no-match via explicit umlaut signal;
// es via ¿/¡; pt via ã/õ/ç").
func applyOverrides(text string, scores map[Code]float64) {
	lower := strings.ToLower(text)
	if strings.ContainsAny(lower, "äöüß") {
		bump(scores, German)
	}
	if strings.ContainsAny(text, "¿¡") {
		bump(scores, Spanish)
	}
	if strings.ContainsAny(lower, "ãõç") {
		bump(scores, Portuguese)
	}
}

// bump guarantees code scores strictly above the current best, so an
// override always wins (§4.6).
func bump(scores map[Code]float64, code Code) {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if scores[code] <= max {
		scores[code] = max + 0.5
	}
}

// confidence maps a raw weighted-match rate into [0,1], saturating at 1.
func confidence(raw float64) float64 {
	c := raw * 2
	if c > 1 {
		c = 1
	}
	return c
}

// SortedCodes returns the keys of a score table that appear in codeOrder,
// sorted alphabetically by code, for callers that need deterministic
// iteration (e.g. rendering language_profile).
func SortedCodes(scores map[Code]float64) []Code {
	out := make([]Code, 0, len(scores))
	for _, c := range codeOrder {
		if _, ok := scores[c]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsGreeting reports whether text matches code's greeting lexicon,
// supporting the INSTINCT route's greeting fast path (§4.6).
func IsGreeting(text string, code Code) bool {
	lex, ok := lexicons[code]
	if !ok {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, g := range lex.greetings {
		if strings.Contains(lower, g) {
			return true
		}
	}
	return false
}
