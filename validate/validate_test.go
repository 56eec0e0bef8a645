package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	A string `json:"a"`
	B int    `json:"b"`
	C bool   `json:"c"`
	D string `json:"d,omitempty"`

	Ignored  string `json:"-"`
	internal string
}

func TestSchemaFor(t *testing.T) {
	schema := SchemaFor[sampleRequest]()

	assert.Equal(t, Schema{
		{Name: "a", Required: true},
		{Name: "b", Required: true},
		{Name: "c", Required: true},
		{Name: "d", Required: false},
	}, schema)
	assert.Equal(t, []string{"a", "b", "c"}, schema.Required())

	t.Run("pointer type", func(t *testing.T) {
		assert.Equal(t, schema, SchemaFor[*sampleRequest]())
	})

	t.Run("non struct", func(t *testing.T) {
		assert.Empty(t, SchemaFor[map[string]any]())
	})
}

func TestDecode_MissingFields(t *testing.T) {
	schema := SchemaFor[sampleRequest]()

	t.Run("only c missing", func(t *testing.T) {
		_, err := Decode[sampleRequest]([]byte(`{"a":"x","b":1}`), schema)
		var missing *MissingFieldError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, []string{"c"}, missing.Fields)
	})

	t.Run("all missing listed in declaration order", func(t *testing.T) {
		_, err := Decode[sampleRequest]([]byte(`{"d":"opt"}`), schema)
		var missing *MissingFieldError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, []string{"a", "b", "c"}, missing.Fields)
		assert.Equal(t, "missing required fields:\na\nb\nc", err.Error())
	})

	t.Run("explicit null counts as missing", func(t *testing.T) {
		err := Check([]byte(`{"a":null,"b":1,"c":true}`), schema)
		var missing *MissingFieldError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, []string{"a"}, missing.Fields)
	})
}

func TestDecode_Success(t *testing.T) {
	schema := SchemaFor[sampleRequest]()

	for _, raw := range []string{
		`{"a":"x","b":2,"c":true}`,
		`{"a":"x","b":2,"c":true,"d":"extra"}`,
	} {
		got, err := Decode[sampleRequest]([]byte(raw), schema)
		require.NoError(t, err, raw)
		assert.Equal(t, "x", got.A)
		assert.Equal(t, 2, got.B)
		assert.True(t, got.C)
	}
}

func TestDecode_ErrorKinds(t *testing.T) {
	schema := SchemaFor[sampleRequest]()

	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, err error)
	}{
		{
			name: "empty",
			raw:  "",
			check: func(t *testing.T, err error) {
				var target *NullPayloadError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name: "whitespace",
			raw:  "  \n ",
			check: func(t *testing.T, err error) {
				var target *NullPayloadError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name: "null",
			raw:  "null",
			check: func(t *testing.T, err error) {
				var target *NullPayloadError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name: "syntax error",
			raw:  `{"a": "x",`,
			check: func(t *testing.T, err error) {
				var malformed *MalformedJSONError
				assert.True(t, errors.As(err, &malformed))
				var missing *MissingFieldError
				assert.False(t, errors.As(err, &missing))
			},
		},
		{
			name: "array instead of object",
			raw:  `["a","b"]`,
			check: func(t *testing.T, err error) {
				var malformed *MalformedJSONError
				assert.True(t, errors.As(err, &malformed))
			},
		},
		{
			name: "wrong field type",
			raw:  `{"a":"x","b":"two","c":true}`,
			check: func(t *testing.T, err error) {
				var malformed *MalformedJSONError
				assert.True(t, errors.As(err, &malformed))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode[sampleRequest]([]byte(tt.raw), schema)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
