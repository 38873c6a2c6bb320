package articlestore

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeLine(t *testing.T) {
	r := &Record{
		Digest:       "1418570095",
		Title:        "On the Analytical Engine",
		Authors:      "Ada Lovelace",
		Year:         1843,
		BodyFileName: "1418570095.txt",
	}
	line := EncodeLine(r)
	assert.Equal(t, "1418570095|On the Analytical Engine|Ada Lovelace|1843|1418570095.txt", line)

	decoded, err := DecodeLine(line)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func TestDecodeLineMalformed(t *testing.T) {
	for _, line := range []string{
		"1|title|authors|1999",
		"1|title|with|pipe|1999|1.txt",
		"1|title|authors|nineteen|1.txt",
	} {
		_, err := DecodeLine(line)
		require.Error(t, err, line)
		assert.True(t, errors.Is(err, ErrMalformedRecord), line)
	}
}

func TestReadRecordsSkipsMalformed(t *testing.T) {
	input := strings.Join([]string{
		"1|A|x|2000|1.txt",
		"",
		"broken line",
		"2|B|y|20x0|2.txt",
		"3|C|z|2001|3.txt",
	}, "\n") + "\n"

	records, skipped, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].Digest)
	assert.Equal(t, "3", records[1].Digest)

	require.Len(t, skipped, 2)
	assert.Equal(t, 3, skipped[0].Line)
	assert.Equal(t, 4, skipped[1].Line)
	assert.Contains(t, skipped[1].Reason, "invalid year")
}

func TestWriteRecords(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRecords(&buf, []*Record{
		{Digest: "1", Title: "A", Authors: "x", Year: 2000, BodyFileName: "1.txt"},
		{Digest: "2", Title: "B", Authors: "", Year: -5, BodyFileName: "2.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1|A|x|2000|1.txt\n2|B||-5|2.txt\n", buf.String())

	records, skipped, err := ReadRecords(&buf)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Len(t, records, 2)
	assert.Equal(t, -5, records[1].Year)
}

func TestValidateField(t *testing.T) {
	assert.NoError(t, validateField("title", "plain title"))
	for _, bad := range []string{"a|b", "a\nb", "a\rb"} {
		assert.ErrorIs(t, validateField("title", bad), ErrInvalidField)
	}
}

func TestReadRecordsLongLine(t *testing.T) {
	title := strings.Repeat("t", 2<<20)
	input := "1|" + title + "|x|2000|1.txt\n" +
		"2|" + title + "|y|bad|2.txt\n" +
		"3|C|z|2001|3.txt"

	records, skipped, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, title, records[0].Title)
	assert.Equal(t, "3", records[1].Digest, "a final line without a newline is still read")
	require.Len(t, skipped, 1)
	assert.Equal(t, 2, skipped[0].Line)
}
