package tagging

import (
	"strings"
)

const promptTemplate = `You are tagging a note in a personal knowledge base.

Write a short summary of the note (one to three sentences), then on a new line
list additional hashtags that describe it. Only use tags from this vocabulary:
{{vocabulary}}

Rules:
- Every tag starts with '#'.
- Do not repeat tags that already appear at the top of the note.
- If no vocabulary tag fits, list no tags.
- Reply with the summary and tags only, no preamble.

Note:
{{content}}`

// BuildPrompt renders the summarisation prompt for content.
func BuildPrompt(content string, vocabulary []string) string {
	tags := make([]string, 0, len(vocabulary))
	for _, v := range vocabulary {
		if t := NormalizeTag(v); t != "" {
			tags = append(tags, "#"+t)
		}
	}
	vocab := "(empty)"
	if len(tags) > 0 {
		vocab = strings.Join(tags, " ")
	}
	r := strings.NewReplacer("{{vocabulary}}", vocab, "{{content}}", content)
	return r.Replace(promptTemplate)
}
