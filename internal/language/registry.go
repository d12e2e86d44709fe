// Package language holds the static tables that describe which language
// pairs voxpair can translate between and how recognizer language tags map
// onto canonical codes.
package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Code is a canonical two-letter language code as understood by the
// translation and speech services (e.g. "en", "ar").
type Code string

// Pair is a bidirectional translation channel between two languages.
type Pair struct {
	Label string `json:"label" mapstructure:"label"`
	A     Code   `json:"a" mapstructure:"a"`
	B     Code   `json:"b" mapstructure:"b"`
}

// Has reports whether c is one of the pair members.
func (p Pair) Has(c Code) bool {
	return c == p.A || c == p.B
}

func (p Pair) String() string {
	return fmt.Sprintf("%s<->%s", p.A, p.B)
}

// fallbackSpeechCode is used for languages missing from the speech table.
const fallbackSpeechCode = "en"

var defaultPairs = []Pair{
	{Label: "English ↔ Arabic", A: "en", B: "ar"},
	{Label: "English ↔ Sinhala", A: "en", B: "si"},
	{Label: "English ↔ Filipino (Tagalog)", A: "en", B: "tl"},
	{Label: "English ↔ Hindi", A: "en", B: "hi"},
}

var defaultNames = map[Code]string{
	"en": "English",
	"ar": "Arabic",
	"si": "Sinhala",
	"tl": "Filipino",
	"hi": "Hindi",
}

// defaultAliases maps recognizer output onto canonical codes. Hosted Whisper
// reports full lower-case language names, self-hosted Whisper reports codes
// and occasionally "fil" for Tagalog.
var defaultAliases = map[string]Code{
	"en":       "en",
	"english":  "en",
	"ar":       "ar",
	"arabic":   "ar",
	"si":       "si",
	"sinhala":  "si",
	"tl":       "tl",
	"fil":      "tl",
	"tagalog":  "tl",
	"filipino": "tl",
	"hi":       "hi",
	"hindi":    "hi",
}

var defaultSpeech = map[Code]string{
	"en": "en",
	"ar": "ar",
	"si": "si",
	"tl": "tl",
	"hi": "hi",
}

// Registry is a read-only set of lookup tables. All lookups are total: an
// unknown key yields a fallback value, never an error.
type Registry struct {
	pairs   []Pair
	names   map[Code]string
	aliases map[string]Code
	speech  map[Code]string
}

// Tables carries optional additions merged over the built-in tables.
type Tables struct {
	Pairs   []Pair
	Names   map[Code]string
	Aliases map[string]Code
	Speech  map[Code]string
}

// Default returns the registry with the built-in pairs only.
func Default() *Registry {
	r, err := New(Tables{})
	if err != nil {
		panic(fmt.Sprintf("built-in language tables are invalid: %v", err))
	}
	return r
}

// New builds a registry from the built-in tables extended with extra. Every
// pair must join two distinct, known, parseable codes and carry a unique label.
func New(extra Tables) (*Registry, error) {
	r := &Registry{
		names:   make(map[Code]string, len(defaultNames)+len(extra.Names)),
		aliases: make(map[string]Code, len(defaultAliases)+len(extra.Aliases)),
		speech:  make(map[Code]string, len(defaultSpeech)+len(extra.Speech)),
	}
	for k, v := range defaultNames {
		r.names[k] = v
	}
	for k, v := range extra.Names {
		r.names[k] = v
	}
	for k, v := range defaultAliases {
		r.aliases[k] = v
	}
	for k, v := range extra.Aliases {
		r.aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for k, v := range defaultSpeech {
		r.speech[k] = v
	}
	for k, v := range extra.Speech {
		r.speech[k] = v
	}

	seen := make(map[string]bool)
	for _, p := range append(append([]Pair{}, defaultPairs...), extra.Pairs...) {
		if err := r.validatePair(p); err != nil {
			return nil, err
		}
		if seen[p.Label] {
			return nil, fmt.Errorf("duplicate pair label %q", p.Label)
		}
		seen[p.Label] = true
		r.pairs = append(r.pairs, p)
	}

	return r, nil
}

func (r *Registry) validatePair(p Pair) error {
	if p.Label == "" {
		return fmt.Errorf("pair %s has no label", p)
	}
	if p.A == p.B {
		return fmt.Errorf("pair %q joins %s with itself", p.Label, p.A)
	}
	for _, c := range []Code{p.A, p.B} {
		if _, ok := r.names[c]; !ok {
			return fmt.Errorf("pair %q uses unknown language %q", p.Label, c)
		}
		if _, err := language.Parse(string(c)); err != nil {
			return fmt.Errorf("pair %q uses invalid language code %q: %w", p.Label, c, err)
		}
	}
	return nil
}

// Pairs returns the configured pairs in display order.
func (r *Registry) Pairs() []Pair {
	out := make([]Pair, len(r.pairs))
	copy(out, r.pairs)
	return out
}

// Pair looks up a configured pair by its display label.
func (r *Registry) Pair(label string) (Pair, bool) {
	for _, p := range r.pairs {
		if p.Label == label {
			return p, true
		}
	}
	return Pair{}, false
}

// Normalize maps a raw recognizer tag to a canonical code. The lookup is made
// on the trimmed, lower-cased tag, so "EN" and " en" both resolve to "en"
// where an exact-match table would leave them unmapped. Tags missing from the
// alias table come back unchanged, untrimmed and in their original case; such
// a code matches no pair member, so the turn router rejects it rather than
// this lookup failing.
func (r *Registry) Normalize(raw string) Code {
	if c, ok := r.aliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return c
	}
	return Code(raw)
}

// DisplayName returns a human-friendly name, or the code itself if unknown.
func (r *Registry) DisplayName(c Code) string {
	if name, ok := r.names[c]; ok {
		return name
	}
	return string(c)
}

// SpeechCode returns the code the speech synthesizer expects for c.
func (r *Registry) SpeechCode(c Code) string {
	if s, ok := r.speech[c]; ok {
		return s
	}
	return fallbackSpeechCode
}
