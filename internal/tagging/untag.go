package tagging

import "github.com/starford/autotag/internal/document"

// Untag removes the tagged block (if any) and then the leading hashtag run
// (if any). Content with neither is returned unchanged with modified=false.
func Untag(content string) (string, bool) {
	doc := document.Parse(content)
	removedBlock := doc.RemoveBlock()
	if removedBlock {
		// The hashtag run is looked for at the start of what remains.
		doc = document.Parse(doc.String())
	}
	strippedTags := doc.StripHashtags()
	if !removedBlock && !strippedTags {
		return content, false
	}
	return doc.String(), true
}
