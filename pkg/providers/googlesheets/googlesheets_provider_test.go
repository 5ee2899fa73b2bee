package googlesheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadField(t *testing.T) {
	tests := []struct {
		name        string
		payloadJSON []byte
		field       string
		expected    string
		wantErr     bool
	}{
		{
			name:        "present string field",
			payloadJSON: []byte(`{"spreadsheet_id":"sheet-123"}`),
			field:       "spreadsheet_id",
			expected:    "sheet-123",
		},
		{
			name:        "missing field",
			payloadJSON: []byte(`{"spreadsheet_id":"sheet-123"}`),
			field:       "worksheet_id",
			expected:    "",
		},
		{
			name:        "non-string field",
			payloadJSON: []byte(`{"worksheet_id":42}`),
			field:       "worksheet_id",
			expected:    "",
		},
		{
			name:        "empty payload",
			payloadJSON: nil,
			field:       "spreadsheet_id",
			expected:    "",
		},
		{
			name:        "malformed payload",
			payloadJSON: []byte(`{not json`),
			field:       "spreadsheet_id",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := payloadField(tt.payloadJSON, tt.field)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}
