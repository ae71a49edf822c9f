package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "already normalized", in: "+15550100", want: "+15550100"},
		{name: "spaces stripped", in: " +1 555 0100 ", want: "+15550100"},
		{name: "tabs and newlines stripped", in: "+1\t555\n0100", want: "+15550100"},
		{name: "punctuation kept", in: "+1-555-0100", want: "+1-555-0100"},
		{name: "empty", in: "", wantErr: true},
		{name: "whitespace only", in: "  \t ", wantErr: true},
		{name: "letters rejected", in: "+1 555 CALL", wantErr: true},
		{name: "no digits", in: "+-()", wantErr: true},
		{name: "too long", in: "123456789012345678901234567890123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, "phone", vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
