package retrieval

import (
	"context"
	"strings"
)

var testVocab = []string{"go", "python", "resume", "music", "kotlin"}

// keywordEmbed maps text to keyword counts over testVocab plus a constant
// bias dimension, so no vector is ever zero.
func keywordEmbed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, len(testVocab)+1)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		for i, k := range testVocab {
			if w == k {
				v[i]++
			}
		}
	}
	v[len(testVocab)] = 0.1
	return v, nil
}

func testDocs() []Document {
	return []Document{
		{ID: "d1", Content: "go go services", Metadata: map[string]string{"path": "go.md", "modifiedTime": "2024-01-02T00:00:00Z"}},
		{ID: "d2", Content: "python notebooks", Metadata: map[string]string{"path": "python.md", "modifiedTime": "2024-02-03T00:00:00Z"}},
		{ID: "d3", Content: "resume with go and kotlin", Metadata: map[string]string{"path": "resume.md", "modifiedTime": "2024-03-04T00:00:00Z"}},
		{ID: "d4", Content: "music playlist", Metadata: map[string]string{"path": "music.md", "modifiedTime": "2024-04-05T00:00:00Z"}},
	}
}
