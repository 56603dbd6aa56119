package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blestadev/blesta-go/internal/blesta/client"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{
			name:  "empty",
			pairs: nil,
			want:  nil,
		},
		{
			name:  "simple pairs",
			pairs: []string{"status=active", "client_id=42"},
			want:  map[string]any{"status": "active", "client_id": "42"},
		},
		{
			name:  "value containing equals",
			pairs: []string{"filter=a=b"},
			want:  map[string]any{"filter": "a=b"},
		},
		{
			name:    "missing equals",
			pairs:   []string{"status"},
			wantErr: true,
		},
		{
			name:    "empty key",
			pairs:   []string{"=active"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTargets(t *testing.T) {
	targets, err := parseTargets([]string{"clients.getList", "order.orders.getList"})
	require.NoError(t, err)

	assert.Equal(t, []client.Target{
		{Model: "clients", Method: "getList"},
		{Model: "order.orders", Method: "getList"},
	}, targets)
}

func TestParseTargets_Invalid(t *testing.T) {
	tests := []string{"clients", ".getList", "clients.", ""}
	for _, label := range tests {
		t.Run(label, func(t *testing.T) {
			_, err := parseTargets([]string{label})
			assert.Error(t, err)
		})
	}
}

func TestFormatParams(t *testing.T) {
	out := formatParams(map[string]any{"page": "2"})
	assert.JSONEq(t, `{"page": "2"}`, out)
}

func TestBuildRootCmd(t *testing.T) {
	rootCmd := buildRootCmd()

	assert.Equal(t, "blesta", rootCmd.Use)
	assert.NotNil(t, rootCmd.Flags().Lookup("model"))
	assert.NotNil(t, rootCmd.Flags().Lookup("method"))
	assert.NotNil(t, rootCmd.Flags().Lookup("action"))
	assert.NotNil(t, rootCmd.Flags().Lookup("last-request"))

	names := make([]string, 0, 2)
	for _, sub := range rootCmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "report")
	assert.Contains(t, names, "extract")
}
