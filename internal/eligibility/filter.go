// Package eligibility decides whether a document qualifies for (re)tagging.
package eligibility

import (
	"path"
	"regexp"
	"strings"

	"github.com/starford/autotag/internal/models"
)

// Pattern is a compiled exclusion pattern. Patterns containing '*' are
// wildcards; anything else is a literal file or folder name.
type Pattern struct {
	raw     string
	literal string
	re      *regexp.Regexp
}

// CompilePattern compiles a single exclusion pattern. Matching is case-insensitive.
func CompilePattern(raw string) Pattern {
	p := Pattern{raw: raw}
	lower := strings.ToLower(strings.TrimSpace(raw))
	if !strings.Contains(lower, "*") {
		p.literal = strings.Trim(lower, "/")
		return p
	}
	parts := strings.Split(lower, "*")
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	expr := strings.Join(parts, ".*")
	// Whole path, path suffix, or a segment inside the path.
	p.re = regexp.MustCompile(`^` + expr + `$|/` + expr + `$|/` + expr + `/`)
	return p
}

// String returns the pattern as written.
func (p Pattern) String() string { return p.raw }

// Match reports whether the pattern excludes the document at docPath.
func (p Pattern) Match(docPath string) bool {
	lowerPath := strings.ToLower(strings.TrimPrefix(docPath, "/"))
	if p.re != nil {
		return p.re.MatchString(lowerPath)
	}
	if p.literal == "" {
		return false
	}
	name := path.Base(lowerPath)
	if name == p.literal || strings.TrimSuffix(name, path.Ext(name)) == p.literal {
		return true
	}
	dir := path.Dir(lowerPath)
	if dir == "." {
		return false
	}
	return strings.Contains("/"+dir+"/", "/"+p.literal+"/")
}

// Filter holds the compiled exclusion patterns.
type Filter struct {
	patterns []Pattern
}

// NewFilter compiles patterns, skipping blank entries.
func NewFilter(patterns []string) *Filter {
	f := &Filter{}
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		f.patterns = append(f.patterns, CompilePattern(raw))
	}
	return f
}

// Excluded returns the first pattern matching docPath.
func (f *Filter) Excluded(docPath string) (Pattern, bool) {
	for _, p := range f.patterns {
		if p.Match(docPath) {
			return p, true
		}
	}
	return Pattern{}, false
}

// ShouldProcess reports whether doc is eligible: not excluded, and either never
// tagged or modified after its last successful tagging.
func (f *Filter) ShouldProcess(doc models.DocumentMetadata, record models.TaggingRecord) bool {
	if _, excluded := f.Excluded(doc.Path); excluded {
		return false
	}
	taggedAt, ok := record[doc.Path]
	if !ok {
		return true
	}
	return doc.ModifiedAt.UnixMilli() > taggedAt
}
