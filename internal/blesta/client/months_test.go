package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  []MonthBoundary
	}{
		{
			name:  "single month",
			start: "2024-05",
			end:   "2024-05",
			want: []MonthBoundary{
				{Start: "2024-05-01", End: "2024-05-31", Period: "2024-05"},
			},
		},
		{
			name:  "leap february",
			start: "2024-02",
			end:   "2024-02",
			want: []MonthBoundary{
				{Start: "2024-02-01", End: "2024-02-29", Period: "2024-02"},
			},
		},
		{
			name:  "non-leap february",
			start: "2023-02",
			end:   "2023-02",
			want: []MonthBoundary{
				{Start: "2023-02-01", End: "2023-02-28", Period: "2023-02"},
			},
		},
		{
			name:  "year rollover",
			start: "2023-11",
			end:   "2024-01",
			want: []MonthBoundary{
				{Start: "2023-11-01", End: "2023-11-30", Period: "2023-11"},
				{Start: "2023-12-01", End: "2023-12-31", Period: "2023-12"},
				{Start: "2024-01-01", End: "2024-01-31", Period: "2024-01"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := monthBoundaries(tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthBoundaries_Errors(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
	}{
		{name: "malformed start", start: "2024/01", end: "2024-03"},
		{name: "malformed end", start: "2024-01", end: "2024-3"},
		{name: "full date instead of month", start: "2024-01-01", end: "2024-03"},
		{name: "inverted range", start: "2024-04", end: "2024-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := monthBoundaries(tt.start, tt.end)
			assert.Error(t, err)
		})
	}
}
