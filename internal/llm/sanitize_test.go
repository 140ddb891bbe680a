package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTranscription(t *testing.T) {
	raw := []byte(`{
		"texto": "ALBARAN 55",
		"document_type": "Albaran",
		"confidence": 0.9,
		"items": [
			{"code": "X1", "quantity": 2.5, "unit": " M2 "},
			{"description": "", "quantity": "3"},
			"junk"
		]
	}`)
	out, dropped, err := NormalizeTranscription(raw, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, dropped)
	require.NoError(t, ValidateJSONAgainstSchema(BuildTranscriptionJSONSchema(), out))

	var tr Transcription
	require.NoError(t, json.Unmarshal(out, &tr))
	assert.Equal(t, "ALBARAN 55", tr.Text)
	assert.Equal(t, "delivery", tr.DocumentType)
	require.Len(t, tr.Lines, 1)
	assert.Equal(t, TranscribedLine{Code: "X1", Description: "X1", Quantity: "2.5", Unit: "M2"}, tr.Lines[0])
}

func TestNormalizeTranscription_UnknownType(t *testing.T) {
	out, _, err := NormalizeTranscription([]byte(`{"text":"x","document_type":"receipt"}`), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"x","document_type":"unknown"}`, string(out))
}

func TestNormalizeTranscription_BadJSON(t *testing.T) {
	_, _, err := NormalizeTranscription([]byte(`{`), nil)
	assert.Error(t, err)
}
