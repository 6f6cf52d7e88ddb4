package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	cases := []struct {
		name     string
		results  int
		pageSize int
		want     int
	}{
		{name: "no results", results: 0, pageSize: 20, want: 0},
		{name: "single partial page", results: 1, pageSize: 20, want: 1},
		{name: "exact multiple", results: 40, pageSize: 20, want: 2},
		{name: "one over", results: 21, pageSize: 20, want: 2},
		{name: "page size one", results: 7, pageSize: 1, want: 7},
		{name: "invalid page size", results: 7, pageSize: 0, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TotalPages(tc.results, tc.pageSize))
		})
	}
}

func TestTotalPagesZeroIffEmpty(t *testing.T) {
	for size := 1; size <= 7; size++ {
		for results := 0; results <= 50; results++ {
			pages := TotalPages(results, size)
			assert.Equal(t, results == 0, pages == 0, "results=%d size=%d", results, size)
			if results > 0 {
				assert.GreaterOrEqual(t, pages*size, results)
				assert.Less(t, (pages-1)*size, results)
			}
		}
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(1, 20, 21))
	assert.Equal(t, 20, Offset(2, 20, 21))
	assert.Equal(t, 0, Offset(3, 20, 21))
	assert.Equal(t, 0, Offset(0, 20, 21))
	assert.Equal(t, 0, Offset(-1, 20, 21))
}
