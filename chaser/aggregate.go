package chaser

import "sort"

// Aggregate returns the number of available seats in env matching c.
// Records are matched on product kind and major version; duplicates are
// summed and negative counts are kept as reported.
func Aggregate(env *ResponseEnvelope, c Criterion) int {
	if env == nil {
		return 0
	}
	total := 0
	for _, lic := range env.Licenses {
		if lic.Kind == c.Product && lic.Version.Major == c.MajorVersion {
			total += lic.Available
		}
	}
	return total
}

// Total is the summed availability of one product and major version.
type Total struct {
	Criterion
	Available   int
	TotalTokens int
	Records     int
}

// Totals groups every product kind and major version present in env.
// The result is sorted by kind, then by major version.
func Totals(env *ResponseEnvelope) []Total {
	if env == nil {
		return nil
	}
	index := make(map[Criterion]int)
	var out []Total
	for _, lic := range env.Licenses {
		c := Criterion{Product: lic.Kind, MajorVersion: lic.Version.Major}
		i, ok := index[c]
		if !ok {
			i = len(out)
			index[c] = i
			out = append(out, Total{Criterion: c})
		}
		out[i].Available += lic.Available
		out[i].TotalTokens += lic.TotalTokens
		out[i].Records++
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Product != out[b].Product {
			return out[a].Product < out[b].Product
		}
		return out[a].MajorVersion < out[b].MajorVersion
	})
	return out
}
