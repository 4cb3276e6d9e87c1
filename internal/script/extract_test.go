package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStatus(t *testing.T) {
	t.Parallel()
	v, err := Extract(Response{Status: 201}, "status")
	require.NoError(t, err)
	assert.Equal(t, "201", v)
}

func TestExtractHeaderIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	resp := Response{Headers: map[string]string{"X-Request-Id": "abc123"}}
	v, err := Extract(resp, "header.x-request-id")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)
}

func TestExtractBodyField(t *testing.T) {
	t.Parallel()
	resp := Response{Body: []byte(`{"token":"tok_abc"}`)}
	v, err := Extract(resp, "body.token")
	require.NoError(t, err)
	assert.Equal(t, "tok_abc", v)
}

func TestExtractBodyNestedField(t *testing.T) {
	t.Parallel()
	resp := Response{Body: []byte(`{"data":{"user":{"id":42}}}`)}
	v, err := Extract(resp, "body.data.user.id")
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestExtractBodyArrayIndex(t *testing.T) {
	t.Parallel()
	resp := Response{Body: []byte(`{"items":[{"id":"a"},{"id":"b"}]}`)}
	v, err := Extract(resp, "body.items[1].id")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestExtractBodyTopLevelArrayIndex(t *testing.T) {
	t.Parallel()
	resp := Response{Body: []byte(`["first","second"]`)}
	v, err := Extract(resp, "body.[1]")
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestExtractBodyArrayIndexOutOfRange(t *testing.T) {
	t.Parallel()
	resp := Response{Body: []byte(`{"items":[1]}`)}
	_, err := Extract(resp, "body.items[5]")
	require.Error(t, err)
}

func TestExtractBodyMissingFieldErrors(t *testing.T) {
	t.Parallel()
	resp := Response{Body: []byte(`{"a":1}`)}
	_, err := Extract(resp, "body.b")
	require.Error(t, err)
}

func TestExtractUnknownSourceErrors(t *testing.T) {
	t.Parallel()
	_, err := Extract(Response{}, "weird.thing")
	require.Error(t, err)
}
