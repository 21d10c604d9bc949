package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		results []*Result
		want    Summary
	}{
		{
			name:    "empty",
			results: nil,
			want:    Summary{},
		},
		{
			name: "all passed",
			results: []*Result{
				{Total: 3, Passed: 3},
				{Total: 2, Passed: 2},
			},
			want: Summary{Total: 5, Passed: 5, SuccessRate: 100.0},
		},
		{
			name: "two of three",
			results: []*Result{
				{Total: 3, Passed: 2, Failed: 1},
			},
			want: Summary{Total: 3, Passed: 2, Failed: 1, SuccessRate: 66.7},
		},
		{
			name: "nil entries ignored",
			results: []*Result{
				nil,
				{Total: 4, Passed: 1, Failed: 3},
			},
			want: Summary{Total: 4, Passed: 1, Failed: 3, SuccessRate: 25.0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.results))
		})
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	results := []*Result{
		{Total: 10, Passed: 9, Failed: 1},
		{Total: 5, Passed: 5},
		{Total: 7, Passed: 6, Failed: 1},
	}
	first := Aggregate(results)
	second := Aggregate(results)
	assert.Equal(t, first, second)
}

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(0, 0))
	assert.Equal(t, 100.0, Rate(3, 3))
	assert.Equal(t, 66.7, Rate(2, 3))
	assert.Equal(t, 85.7, Rate(6, 7))
	assert.Equal(t, 0.0, Rate(0, 5))
}
