package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_SearchFilters(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "full filters", doc: `{"filters": {"status": ["Parts On Order"], "priority": ["Urgent"], "search_text": "CR-SM", "customer": "Acme"}, "explanation": "x"}`},
		{name: "empty filters", doc: `{"filters": {}}`},
		{name: "missing filters", doc: `{"explanation": "x"}`, wantErr: true},
		{name: "status not a list", doc: `{"filters": {"status": "Done"}}`, wantErr: true},
		{name: "unknown filter key", doc: `{"filters": {"colour": "red"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(SearchFilters, tt.doc)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.NotEmpty(t, ve.Errors)
		})
	}
}

func TestValidate_ChatAction(t *testing.T) {
	assert.NoError(t, Validate(ChatAction, `{"action": "filter", "filters": {"priority": ["High"]}}`))
	assert.Error(t, Validate(ChatAction, `{"action": "delete"}`))
}

func TestValidate_PartsInfo(t *testing.T) {
	assert.NoError(t, Validate(PartsInfo, `{"parts_mentioned": ["module"], "part_numbers": [], "quantities": [2], "summary": "one module"}`))

	err := Validate(PartsInfo, `{"parts_mentioned": []}`)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Error(), "part_numbers")
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("missing", `{}`)
	var le *SchemaLoadError
	require.True(t, errors.As(err, &le))
	assert.Contains(t, err.Error(), "unknown schema")
}

func TestValidate_MalformedDocument(t *testing.T) {
	err := Validate(SearchFilters, `{not json`)
	var le *SchemaLoadError
	assert.True(t, errors.As(err, &le))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["numbers"], "properties": {"numbers": {"type": "array"}}}`
	assert.NoError(t, ValidateJSONString(schema, `{"numbers": ["1042"]}`))

	err := ValidateJSONString(schema, `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(root)")
}
