package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "proptoken/pkg/domain-errors"
)

func TestParseSubmissionID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSubmissionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSubmissionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSubmissionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseSubmissionID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, SubmissionID(valid), id)
	})
}

func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE submissions;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errSubmission := ParseSubmissionID(tt.input)
			_, errEvent := ParseEventID(tt.input)
			if tt.wantErr {
				require.Error(t, errSubmission)
				require.Error(t, errEvent)
				assert.True(t, dErrors.HasCode(errSubmission, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, errSubmission)
				require.NoError(t, errEvent)
			}
		})
	}
}

func TestSubmissionID_JSON(t *testing.T) {
	id := NewSubmissionID()

	payload, err := json.Marshal(map[string]SubmissionID{"id": id})
	require.NoError(t, err)
	assert.Contains(t, string(payload), id.String())

	var decoded map[string]SubmissionID
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, id, decoded["id"])

	err = json.Unmarshal([]byte(`{"id":"nope"}`), &decoded)
	require.Error(t, err)
}
