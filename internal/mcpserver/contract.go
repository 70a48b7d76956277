package mcpserver

// BlockFormatContract describes how tagged documents are laid out, so LLM
// consumers can read or edit them without breaking re-tagging and untagging.
const BlockFormatContract = `# Autotag Block Format

A tagged document starts with a summary block, followed by the original
content with a leading hashtag run.

## Structure

` + "```" + `markdown
---
LLM-tagged: 2026-10-15T12:00:00.000Z
---

One or two sentences summarizing the document.
#semantic #tags

---

#vocabulary #matches

Original document content.
` + "```" + `

## Rules

1. The block begins at the very first line of the document. The marker line
   ` + "`LLM-tagged:`" + ` carries the UTC timestamp of the tagging run.
2. The summary ends at the first line consisting only of ` + "`---`" + `.
   Summaries never contain such a line.
3. A document containing a line starting with ` + "`LLM-tagged:`" + ` is never
   tagged again. Untag it first to re-tag.
4. The hashtag run directly before the content (or directly after YAML
   frontmatter) holds the tags matched from the vocabulary. Each tag appears
   once; matching is whole-word and case-insensitive.
5. Untagging removes the block and the leading hashtag run and leaves the rest
   of the document byte-for-byte unchanged.
`
