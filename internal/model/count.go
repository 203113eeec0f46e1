package model

import "sort"

// CodeCount is the number of records whose field carries a given code.
type CodeCount struct {
	Field    string `json:"field"`
	SchemeID string `json:"scheme_id"`
	CodeID   string `json:"code_id"`
	Count    int    `json:"count"`
}

// CountCodes tallies every label on fields across records, ordered by field
// then code id. A record counts once per code even if the label repeats.
func CountCodes(records []*Record, fields []FieldKey) []CodeCount {
	type key struct{ field, scheme, code string }
	counts := make(map[key]int)
	for _, r := range records {
		for _, f := range fields {
			labels, ok := r.Labels(f)
			if !ok {
				continue
			}
			seen := make(map[key]bool, len(labels))
			for _, l := range labels {
				k := key{string(f), l.SchemeID, l.CodeID}
				if seen[k] {
					continue
				}
				seen[k] = true
				counts[k]++
			}
		}
	}

	out := make([]CodeCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, CodeCount{Field: k.field, SchemeID: k.scheme, CodeID: k.code, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].CodeID < out[j].CodeID
	})
	return out
}
