package probe

import (
	"encoding/json"
	"fmt"
	"strings"

	"typeprobe/internal/schema"
)

// RenderSummary renders a small human-readable summary: one block per report,
// then the schema as header,normalized,type rows.
func RenderSummary(s schema.Schema, reports ...*Report) []byte {
	var b strings.Builder
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		fmt.Fprintf(&b, "path=%s\n", rep.Path)
		fmt.Fprintf(&b, "total_lines=%d\n", rep.TotalLines)
		fmt.Fprintf(&b, "sample_rows=%d\n", rep.SampledRows)
		fmt.Fprintf(&b, "last_row_sampled=%t\n", rep.LastRowSampled)
		if w := rep.FieldLength; w != nil {
			fmt.Fprintf(&b, "field_length_warning=expected:%d,mismatched:%d,first_line:%d\n", w.Expected, w.Mismatched, w.FirstLine)
		}
	}
	fmt.Fprintf(&b, "header,normalized,type\n")
	for _, f := range s.Fields() {
		fmt.Fprintf(&b, "%s,%s,%s\n", f.Header, f.Name, f.Type)
	}
	return []byte(b.String())
}

// Result is the JSON document the infer command prints.
type Result struct {
	Schema  schema.Schema `json:"schema"`
	Keys    []string      `json:"key_candidates,omitempty"`
	Reports []*Report     `json:"reports"`
}

// MarshalResult renders s and its reports as indented JSON.
func MarshalResult(s schema.Schema, reports []*Report) ([]byte, error) {
	res := Result{Schema: s, Reports: reports}
	if len(reports) == 1 {
		res.Keys = KeyCandidates(reports[0].Uniqueness)
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
