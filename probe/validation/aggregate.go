package validation

import "math"

// Summary is the suite-level fold of individual test results.
type Summary struct {
	Total  int
	Passed int
	Failed int
	// SuccessRate is passed/total as a percentage with one decimal,
	// 0 when no tests ran.
	SuccessRate float64
}

// Aggregate folds test results into suite totals. Pure: no side effects,
// aggregating the same inputs twice yields identical summaries.
func Aggregate(results []*Result) Summary {
	var s Summary
	for _, r := range results {
		if r == nil {
			continue
		}
		s.Total += r.Total
		s.Passed += r.Passed
		s.Failed += r.Failed
	}
	s.SuccessRate = Rate(s.Passed, s.Total)
	return s
}

// Rate computes passed/total*100 rounded to one decimal, 0 for an empty
// denominator.
func Rate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(total)*1000) / 10
}
