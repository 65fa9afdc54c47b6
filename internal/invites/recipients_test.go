package invites

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecipients(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{
			name: "single string",
			raw:  `"a@x.com"`,
			want: []string{"a@x.com"},
		},
		{
			name: "delimited string",
			raw:  `"a@x.com, b@x.com; c@x.com d@x.com"`,
			want: []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"},
		},
		{
			name: "flat array",
			raw:  `["a@x.com", "b@x.com"]`,
			want: []string{"a@x.com", "b@x.com"},
		},
		{
			name: "nested array",
			raw:  `[["a@x.com"], [["b@x.com", "c@x.com"]], "d@x.com"]`,
			want: []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"},
		},
		{
			name: "array of delimited strings",
			raw:  `["a@x.com, b@x.com", "c@x.com"]`,
			want: []string{"a@x.com", "b@x.com", "c@x.com"},
		},
		{
			name: "whitespace only entries dropped",
			raw:  `"  ,  ; "`,
			want: nil,
		},
		{
			name:    "number rejected",
			raw:     `42`,
			wantErr: true,
		},
		{
			name:    "object rejected",
			raw:     `{"email": "a@x.com"}`,
			wantErr: true,
		},
		{
			name:    "nested non-string rejected",
			raw:     `["a@x.com", [1]]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecipients(json.RawMessage(tt.raw))

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadRecipients)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"a@x.com", "b@x.com", "A@X.com", "a@x.com", "c@x.com"})
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, got)
}
