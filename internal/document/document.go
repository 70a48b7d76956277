// Package document parses Markdown notes into the structure the tagger mutates:
// an optional tagged block, an optional frontmatter block, a leading hashtag
// run and the body. Parsing is lossless: a Document that is not mutated
// serialises back to exactly the bytes it was parsed from.
package document

import (
	"regexp"
	"strings"
	"time"
)

// Marker is the literal key at the start of the tagged block's header line.
const Marker = "LLM-tagged:"

// TimestampLayout renders block timestamps as ISO-8601 in UTC with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const divider = "---"

var (
	markerLineRe = regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(Marker))
	headerRe     = regexp.MustCompile(`(?m)^---[ \t]*\r?\n` + regexp.QuoteMeta(Marker) + `[ \t]*([^\r\n]*?)[ \t]*\r?\n---[ \t]*\r?\n`)
	dividerRe    = regexp.MustCompile(`(?m)^---[ \t]*\r?$`)
	hashtagRunRe = regexp.MustCompile(`^(?:#[^\s#]+(?:\s+|$))+`)
)

// TaggedBlock is the header + summary unit inserted by tagging.
type TaggedBlock struct {
	Timestamp time.Time
	Summary   string

	raw string // exact source text when parsed; empty for new blocks
}

// Document is a parsed note.
type Document struct {
	// Lead is any text preceding a tagged block found mid-document.
	Lead        string
	Block       *TaggedBlock
	Frontmatter string // raw, including both delimiter lines; "" when absent
	Body        string

	hashtags  []string
	tagsRaw   string
	tagsDirty bool
}

// HasMarker reports whether content contains a tagged block header line.
func HasMarker(content string) bool {
	return markerLineRe.MatchString(content)
}

// Parse splits content into its structural parts.
func Parse(content string) *Document {
	d := &Document{}
	inner := content
	if lead, block, rest, ok := splitBlock(content); ok {
		d.Lead = lead
		d.Block = block
		inner = rest
	}

	d.Frontmatter, inner = splitFrontmatter(inner)

	if loc := hashtagRunRe.FindStringIndex(inner); loc != nil {
		d.tagsRaw = inner[:loc[1]]
		d.hashtags = strings.Fields(d.tagsRaw)
		inner = inner[loc[1]:]
	}
	d.Body = inner
	return d
}

// splitBlock locates the first well-formed tagged block. The summary region is
// matched minimally: it ends at the first divider line after the header.
func splitBlock(content string) (lead string, block *TaggedBlock, rest string, ok bool) {
	loc := headerRe.FindStringSubmatchIndex(content)
	if loc == nil {
		return "", nil, "", false
	}
	afterHeader := content[loc[1]:]
	div := dividerRe.FindStringIndex(afterHeader)
	if div == nil {
		return "", nil, "", false
	}

	end := div[1]
	for end < len(afterHeader) && (afterHeader[end] == '\n' || afterHeader[end] == '\r') {
		end++
	}

	stamp := content[loc[2]:loc[3]]
	ts, _ := time.Parse(time.RFC3339Nano, stamp)
	block = &TaggedBlock{
		Timestamp: ts,
		Summary:   strings.TrimSpace(afterHeader[:div[0]]),
		raw:       content[loc[0] : loc[1]+end],
	}
	return content[:loc[0]], block, afterHeader[end:], true
}

// splitFrontmatter separates a leading frontmatter block (from a first line of
// --- up to and including the next --- line) from the rest of the text.
func splitFrontmatter(text string) (string, string) {
	var offset int
	switch {
	case strings.HasPrefix(text, divider+"\n"):
		offset = len(divider) + 1
	case strings.HasPrefix(text, divider+"\r\n"):
		offset = len(divider) + 2
	default:
		return "", text
	}
	for offset <= len(text) {
		nl := strings.IndexByte(text[offset:], '\n')
		line, next := text[offset:], len(text)
		if nl >= 0 {
			line, next = text[offset:offset+nl], offset+nl+1
		}
		if strings.TrimRight(line, " \t\r") == divider {
			return text[:next], text[next:]
		}
		if nl < 0 {
			break
		}
		offset = next
	}
	// No closing delimiter, so there is no frontmatter.
	return "", text
}

// Hashtags returns the leading hashtag run, each token including its '#'.
func (d *Document) Hashtags() []string {
	return append([]string(nil), d.hashtags...)
}

// AddHashtags prepends tags to the leading hashtag run, skipping any already
// present (case-insensitive). It reports whether anything was added.
func (d *Document) AddHashtags(tags ...string) bool {
	seen := make(map[string]struct{}, len(d.hashtags))
	for _, t := range d.hashtags {
		seen[strings.ToLower(t)] = struct{}{}
	}
	var added []string
	for _, t := range tags {
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		added = append(added, t)
	}
	if len(added) == 0 {
		return false
	}
	d.hashtags = append(added, d.hashtags...)
	d.tagsDirty = true
	return true
}

// StripHashtags removes the leading hashtag run together with the whitespace
// that separates it from the body. It reports whether a run was present.
func (d *Document) StripHashtags() bool {
	if len(d.hashtags) == 0 {
		return false
	}
	d.hashtags = nil
	d.tagsRaw = ""
	d.tagsDirty = true
	return true
}

// SetBlock attaches a new tagged block, replacing any existing one.
func (d *Document) SetBlock(ts time.Time, summary string) {
	d.Block = &TaggedBlock{Timestamp: ts, Summary: summary}
}

// RemoveBlock drops the tagged block. It reports whether one was present.
func (d *Document) RemoveBlock() bool {
	if d.Block == nil {
		return false
	}
	d.Block = nil
	return true
}

// Inner serialises everything after the tagged block.
func (d *Document) Inner() string {
	var b strings.Builder
	b.WriteString(d.Frontmatter)
	tags := d.renderHashtags()
	if tags != "" && d.Frontmatter != "" && !strings.HasSuffix(d.Frontmatter, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(tags)
	b.WriteString(d.Body)
	return b.String()
}

// String serialises the whole document.
func (d *Document) String() string {
	var b strings.Builder
	b.WriteString(d.Lead)
	if d.Block != nil {
		b.WriteString(d.Block.render())
	}
	b.WriteString(d.Inner())
	return b.String()
}

func (d *Document) renderHashtags() string {
	if !d.tagsDirty {
		return d.tagsRaw
	}
	if len(d.hashtags) == 0 {
		return ""
	}
	sep := "\n\n"
	if trail := d.tagsRaw[len(strings.TrimRight(d.tagsRaw, " \t\r\n")):]; trail != "" {
		sep = trail
	}
	if d.Body == "" {
		sep = "\n"
	}
	return strings.Join(d.hashtags, " ") + sep
}

func (b *TaggedBlock) render() string {
	if b.raw != "" {
		return b.raw
	}
	var sb strings.Builder
	sb.WriteString(divider + "\n")
	sb.WriteString(Marker + " " + FormatTimestamp(b.Timestamp) + "\n")
	sb.WriteString(divider + "\n\n")
	sb.WriteString(sanitizeSummary(b.Summary))
	sb.WriteString("\n\n" + divider + "\n\n")
	return sb.String()
}

// FormatTimestamp renders t the way block headers store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// sanitizeSummary drops divider lines from the summary so the block's closing
// divider stays the first one after the header.
func sanitizeSummary(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) == divider {
			continue
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
