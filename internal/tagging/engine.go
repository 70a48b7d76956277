// Package tagging implements tag synthesis (deterministic vocabulary matching
// plus an LLM-written summary) and its reversal.
package tagging

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/starford/autotag/internal/apperr"
	"github.com/starford/autotag/internal/document"
)

// Generator produces a completion for prompt using model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Engine synthesizes tagged document content.
type Engine struct {
	llm Generator
	now func() time.Time
}

// NewEngine creates an Engine backed by llm.
func NewEngine(llm Generator) *Engine {
	return &Engine{llm: llm, now: time.Now}
}

// Synthesize returns content with deterministic hashtags inserted and, when
// the LLM produces a summary, wrapped in a tagged block. Content that already
// carries the block marker is returned unchanged. The original content always
// survives verbatim inside the result.
func (e *Engine) Synthesize(ctx context.Context, content string, vocabulary []string, model string) (string, error) {
	if model == "" {
		return "", apperr.ErrNoModelSelected
	}
	if document.HasMarker(content) {
		return content, nil
	}

	doc := document.Parse(content)
	doc.AddHashtags(MatchVocabulary(content, vocabulary)...)
	inner := doc.String()

	resp, err := e.llm.Generate(ctx, model, BuildPrompt(inner, vocabulary))
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	summary := strings.TrimSpace(resp)
	if summary == "" {
		return inner, nil
	}

	doc.SetBlock(e.now(), summary)
	return doc.String(), nil
}

// MatchVocabulary returns the vocabulary tags that occur as whole words in
// content, each with a single leading '#', in first-match vocabulary order.
// Matching is case-insensitive; a tag listed with and without '#' is reported once.
func MatchVocabulary(content string, vocabulary []string) []string {
	seen := make(map[string]struct{}, len(vocabulary))
	var out []string
	for _, raw := range vocabulary {
		tag := NormalizeTag(raw)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		if !wordRegexp(key).MatchString(content) {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, "#"+tag)
	}
	return out
}

// NormalizeTag strips surrounding whitespace and leading '#' characters. It
// returns "" when the remainder cannot be written as a single hashtag, that is
// when it contains whitespace or another '#'.
func NormalizeTag(raw string) string {
	tag := strings.TrimLeft(strings.TrimSpace(raw), "#")
	if strings.ContainsAny(tag, "#") || strings.IndexFunc(tag, unicode.IsSpace) >= 0 {
		return ""
	}
	return tag
}

// ValidateTag rejects vocabulary entries that NormalizeTag would drop.
func ValidateTag(raw string) error {
	if NormalizeTag(raw) == "" {
		return fmt.Errorf("tag %q must be a single word without '#' after the prefix", raw)
	}
	return nil
}

// wordRegexp matches tag as a whole word: the characters on either side must
// not be letters, digits or underscores.
func wordRegexp(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(tag) + `(?:$|[^\p{L}\p{N}_])`)
}
