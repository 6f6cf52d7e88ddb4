package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"product_id", "Filename"},
		Rows: []map[string]string{
			{"product_id": "p1", "Filename": "a.txt"},
			{"product_id": "p2", "Filename": "b;c.txt"},
		},
	}
}

func TestCSVRenderDefaultDelimiter(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "product_id,Filename\np1,a.txt\np2,b;c.txt\n", string(out))
}

func TestCSVRenderQuotesDelimiterInValue(t *testing.T) {
	out, err := NewCSVExporter().RenderDelimited(sampleDataset(), ';')
	require.NoError(t, err)
	assert.Equal(t, "product_id;Filename\np1;a.txt\np2;\"b;c.txt\"\n", string(out))
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestParseDelimiter(t *testing.T) {
	cases := map[string]rune{"": ',', "comma": ',', "tab": '\t', "semicolon": ';', "pipe": '|', ":": ':'}
	for in, want := range cases {
		got, err := ParseDelimiter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"ab", `"`, "\n"} {
		_, err := ParseDelimiter(bad)
		assert.Error(t, err, bad)
	}
}

func TestPDFRender(t *testing.T) {
	data := sampleDataset()
	data.Rows = append(data.Rows, map[string]string{"product_id": "p3", "Filename": string(bytes.Repeat([]byte("x"), 400))})
	out, err := NewPDFExporter().Render(data, "GenericFile export")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
