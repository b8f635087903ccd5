package synth

import (
	"fmt"
	"strings"
)

// MetadataField describes one metadata key stored alongside each document,
// so the model can build informed where filters.
type MetadataField struct {
	Name    string
	Meaning string
}

// DefaultFields are the metadata keys written by the ingest worker.
var DefaultFields = []MetadataField{
	{Name: "modifiedTime", Meaning: "when the document was last modified, RFC 3339"},
	{Name: "path", Meaning: "the document label or title"},
}

const promptHeader = `Given the following question:
%s

write a vector store query JSON object for it.
Output the JSON object only, with no description or markdown. Do not indent it; put it on a single line.
! Use queryTexts (an array of strings), not queryText.
! Use camelCase for every key: queryTexts, nResults, where, whereDocument.
! where supports exact matches only, e.g. {"path": "resume.md"}.
! whereDocument supports {"$contains": "text"} and {"$not_contains": "text"}.`

// BuildPrompt renders the synthesis prompt. A non-empty errorContext asks for
// a corrected object after a failed attempt.
func BuildPrompt(question, errorContext string, fields []MetadataField) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, promptHeader, question)

	if len(fields) > 0 {
		sb.WriteString("\n\nDocuments carry the following metadata:\n")
		for _, f := range fields {
			fmt.Fprintf(&sb, "- %s: %s\n", f.Name, f.Meaning)
		}
	}

	if errorContext != "" {
		fmt.Fprintf(&sb, "\nA previous attempt to search with your query failed with the following error:\n%s\n", errorContext)
		sb.WriteString("\nReturn a fixed JSON object for the same question, on a single line, with no description.")
	}
	return sb.String()
}
