package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"neti/internal/domain"
)

func TestForFormat(t *testing.T) {
	for _, name := range []string{"json", "yaml"} {
		e, err := ForFormat(name)
		require.NoError(t, err)
		assert.Equal(t, name, e.Format())
	}

	_, err := ForFormat("xml")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
	assert.Contains(t, err.Error(), `"xml"`)
	assert.Equal(t, []string{"json", "yaml"}, Formats())
}

func TestJSONCodec_Export(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONCodec().Export(domain.DomainScanCompleted(nil), &buf))
	assert.JSONEq(t, `{"status":"completed","results":[]}`, buf.String())
}

func TestYAMLCodec_Export(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLCodec().Export(domain.DomainScanCompleted([]string{"a.example.com", "b.example.com"}), &buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "status: completed\n"), out)
	assert.NotContains(t, out, "{")

	var decoded struct {
		Status  string   `yaml:"status"`
		Results []string `yaml:"results"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "completed", decoded.Status)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, decoded.Results)
}

func TestYAMLCodec_KeepsWireNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLCodec().Export(domain.Success("line one\nline two\n"), &buf))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "line one\nline two\n", decoded["stdout"])
	assert.Contains(t, decoded, "stderr")
	assert.Nil(t, decoded["stderr"])
}

func TestYAMLCodec_QuotesAmbiguousStrings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLCodec().Export(map[string]string{"value": "true"}, &buf))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "true", decoded["value"])
}
