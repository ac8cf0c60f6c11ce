package mcpserver

// LinkSyntax is served as the notes://link-syntax resource. It tells LLM
// clients how references between notes are written and resolved.
const LinkSyntax = `# Note reference syntax

Notes are Markdown files with a ` + "`.md`" + ` extension, stored in a folder tree.
Paths use forward slashes and are relative to the notes root.

## Wikilinks

` + "```" + `markdown
[[Project Plan]]
[[projects/roadmap]]
[[roadmap.md]]
` + "```" + `

The text between the brackets is the target, written verbatim. No alias or
heading suffix is stripped.

## Markdown links

` + "```" + `markdown
[the roadmap](projects/roadmap.md)
[with a title](<projects/my plan.md> "Plan")
` + "```" + `

Only local destinations count. Links starting with ` + "`http://`, `https://`, `mailto:`, `#` or `data:`" + `
are ignored, a ` + "`#fragment`" + ` is dropped and percent-escapes are decoded.

## Resolution

A target is matched against existing notes in this order, first hit wins:

1. the exact path, with ` + "`.md`" + ` appended when missing
2. the exact path plus ` + "`.md`" + `
3. and 4. the same two checks ignoring case
5. the note name (file name without ` + "`.md`" + `), ignoring case
6. markdown links only: the last path segment, through steps 1-5

When several notes share a name, a note at the root wins, then the one with
the shortest path, then the alphabetically first. Unresolved targets produce
no edge in the graph.

## Images

Upload images with the ` + "`upload_image`" + ` tool. They are stored in an
` + "`_attachments`" + ` folder next to the note and referenced with a relative link,
for example ` + "`![diagram](_attachments/diagram-20250101120000.png)`" + `.
`
