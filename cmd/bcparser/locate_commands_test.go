package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amr0ny/bc-parser/service/record"
)

func TestLocateCommand_NoMintPrintsPlaceholder(t *testing.T) {
	var pages int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"txns":[]}`))
	}))
	defer server.Close()

	out, err := runApp(t, "", "--json", "locate",
		"--txns-url", server.URL,
		"--txn-url", server.URL,
		"--account-url", server.URL,
		"bob.tg",
	)
	require.NoError(t, err)

	var rec record.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "bob.tg", rec.Name)
	assert.True(t, rec.IsPlaceholder())
	assert.Equal(t, 1, pages, "an empty first page ends the scan")
}

func TestLocateCommand_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing account", []string{"locate"}, "exactly one argument"},
		{"bad age format", []string{"locate", "--age-format", "fortnights", "bob.tg"}, "fortnights"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
