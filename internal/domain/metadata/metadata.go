package metadata

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode"

	"github.com/forPelevin/clipforge/internal/types"
)

const (
	DefaultTitleWords   = 5
	DefaultMinTagLength = 4
	DefaultMaxTags      = 5
)

type Rules struct {
	TitleWords   int
	MinTagLength int
	MaxTags      int
}

func DefaultRules() Rules {
	return Rules{TitleWords: DefaultTitleWords, MinTagLength: DefaultMinTagLength, MaxTags: DefaultMaxTags}
}

func (r Rules) withDefaults() Rules {
	if r.TitleWords <= 0 {
		r.TitleWords = DefaultTitleWords
	}
	if r.MinTagLength <= 0 {
		r.MinTagLength = DefaultMinTagLength
	}
	if r.MaxTags <= 0 {
		r.MaxTags = DefaultMaxTags
	}
	return r
}

// Suggest derives title and hashtags from the transcript text.
func Suggest(tr types.Transcript, clipID string, r Rules, rng *rand.Rand) types.Metadata {
	r = r.withDefaults()
	text := ""
	if !tr.Unavailable() {
		text = tr.PlainText()
	}
	return types.Metadata{
		Title:    Title(text, clipID, r.TitleWords),
		Hashtags: Hashtags(text, r.MinTagLength, r.MaxTags, rng),
	}
}

// Suggester serves Suggest to concurrent clip pipelines sharing one seeded RNG.
type Suggester struct {
	rules Rules

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSuggester(r Rules, rng *rand.Rand) *Suggester {
	return &Suggester{rules: r.withDefaults(), rng: rng}
}

func (s *Suggester) Rules() Rules { return s.rules }

func (s *Suggester) Suggest(_ context.Context, clipID string, tr types.Transcript) types.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Suggest(tr, clipID, s.rules, s.rng)
}

// Title capitalizes the first n words of text, or falls back to "Clip <id>".
func Title(text, clipID string, n int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return "Clip " + clipID
	}
	if len(words) > n {
		words = words[:n]
	}
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// Hashtags picks unique letter-only words longer than minLen, shuffled and capped at max.
func Hashtags(text string, minLen, maxTags int, rng *rand.Rand) []string {
	seen := map[string]struct{}{}
	var words []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		if len([]rune(w)) <= minLen || !lettersOnly(w) {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	if rng != nil {
		rng.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })
	}
	if len(words) > maxTags {
		words = words[:maxTags]
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, "#"+w)
	}
	return out
}

// DownloadName is the published file name: title with underscores plus the clip number.
func DownloadName(title string, n int) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return '_'
		case r == '/' || r == '\\' || r == ':' || unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "clip"
	}
	return fmt.Sprintf("%s_%d.mp4", name, n)
}

func capitalize(w string) string {
	r := []rune(strings.ToLower(w))
	for i, c := range r {
		if unicode.IsLetter(c) {
			r[i] = unicode.ToUpper(c)
			break
		}
	}
	return string(r)
}

func lettersOnly(s string) bool {
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
