package nego

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeIs(t *testing.T) {
	tests := []struct {
		name  string
		ct    string
		types []string
		want  string
	}{
		{"shorthand with params", "application/json; charset=UTF-8", []string{"json", "xml"}, "json"},
		{"full type", "application/x-www-form-urlencoded", []string{"application/x-www-form-urlencoded"}, "application/x-www-form-urlencoded"},
		{"extension", "image/png", []string{"jpeg", "png"}, "png"},
		{"structured suffix", "application/vnd.api+json", []string{"+json"}, "+json"},
		{"wildcard offer", "text/html", []string{"text/*"}, "text/*"},
		{"no match", "text/plain", []string{"json"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TypeIs(tt.ct, tt.types...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := TypeIs("application/*", "json")
	assert.Error(t, err, "wildcard subtype in the request")
}

func TestEssenceAndLookup(t *testing.T) {
	assert.Equal(t, "application/json", Essence("application/JSON; charset=utf-8"))
	assert.Equal(t, "text/plain", Essence("  text/plain "))
	assert.Equal(t, "", Essence(""))

	assert.Equal(t, "application/json", Lookup("json"))
	assert.Equal(t, "application/json", Lookup(".JSON"))
	assert.Equal(t, "*/*+json", Lookup("+json"))
	assert.Equal(t, "text/html", Lookup("text/html; charset=utf-8"))
	assert.Equal(t, "", Lookup("no-such-extension"))
}
