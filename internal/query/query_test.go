package query

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		q    StructuredQuery
		want error
	}{
		{"valid", StructuredQuery{QueryTexts: []string{"go"}, NResults: 3}, nil},
		{"no texts", StructuredQuery{NResults: 3}, ErrNoQueryTexts},
		{"blank texts", StructuredQuery{QueryTexts: []string{"", "  "}, NResults: 3}, ErrNoQueryTexts},
		{"zero n", StructuredQuery{QueryTexts: []string{"go"}}, ErrInvalidNResults},
		{"negative n", StructuredQuery{QueryTexts: []string{"go"}, NResults: -1}, ErrInvalidNResults},
		{"one blank one real", StructuredQuery{QueryTexts: []string{"", "go"}, NResults: 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Validate(); !errors.Is(got, tt.want) {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse_PlainObject(t *testing.T) {
	q, err := Parse(`{"queryTexts":["companies worked at"],"nResults":5}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := StructuredQuery{QueryTexts: []string{"companies worked at"}, NResults: 5}
	if !reflect.DeepEqual(q, want) {
		t.Errorf("Parse() = %+v, want %+v", q, want)
	}
}

func TestParse_StripsFences(t *testing.T) {
	inputs := []string{
		"```json\n{\"queryTexts\":[\"resume\"],\"nResults\":2}\n```",
		"```\n{\"queryTexts\":[\"resume\"],\"nResults\":2}\n```",
		"```json {\"queryTexts\":[\"resume\"],\"nResults\":2}```",
		"  {\"queryTexts\":[\"resume\"],\"nResults\":2}  \n",
	}
	for _, in := range inputs {
		q, err := Parse(in)
		if err != nil {
			t.Errorf("Parse(%q): %v", in, err)
			continue
		}
		if len(q.QueryTexts) != 1 || q.QueryTexts[0] != "resume" || q.NResults != 2 {
			t.Errorf("Parse(%q) = %+v", in, q)
		}
	}
}

func TestParse_DropsQueryEmbeddings(t *testing.T) {
	q, err := Parse(`{"queryTexts":["x"],"nResults":1,"queryEmbeddings":[[0.1,0.2]]}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.String() != `{"queryTexts":["x"],"nResults":1}` {
		t.Errorf("String() = %s, queryEmbeddings should be gone", q.String())
	}
}

func TestParse_KeepsFilters(t *testing.T) {
	q, err := Parse(`{"queryTexts":["x"],"nResults":1,"where":{"path":"cv.html"},"whereDocument":{"$contains":"Go"}}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.Where["path"] != "cv.html" {
		t.Errorf("Where = %v", q.Where)
	}
	if q.WhereDocument["$contains"] != "Go" {
		t.Errorf("WhereDocument = %v", q.WhereDocument)
	}
	if !q.HasFilters() {
		t.Error("HasFilters() = false, want true")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "not json"},
		{"empty", "   "},
		{"array", `[1,2]`},
		{"singular key", `{"queryText":"x","nResults":5}`},
		{"missing n", `{"queryTexts":["x"]}`},
		{"wrong type", `{"queryTexts":"x","nResults":5}`},
		{"fractional n", `{"queryTexts":["x"],"nResults":2.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.raw); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.raw)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	q := Fallback("What companies has this person worked at?", 0)
	if !reflect.DeepEqual(q.QueryTexts, []string{"What companies has this person worked at?"}) {
		t.Errorf("QueryTexts = %v", q.QueryTexts)
	}
	if q.NResults != DefaultNResults {
		t.Errorf("NResults = %d, want %d", q.NResults, DefaultNResults)
	}
	if q.HasFilters() {
		t.Error("fallback must not carry filters")
	}
	if q := Fallback("q", 9); q.NResults != 9 {
		t.Errorf("NResults = %d, want 9", q.NResults)
	}
}
