package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_MidObjectYieldsOnlyComplete(t *testing.T) {
	e := NewExtractor()

	got := e.Append(`[{"script":"a","image_description":"b"},{"script":"c","i`)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Script)
	assert.Equal(t, "b", got[0].ImageDescription)
	assert.Equal(t, 0, got[0].Index)
	assert.False(t, got[0].IsEdited)
	assert.NotEmpty(t, got[0].ID)

	got = e.Append(`mage_description":"d"}]`)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Script)
	assert.Equal(t, "d", got[0].ImageDescription)
	assert.Equal(t, 1, got[0].Index)
}

func TestAppend_AppendOnly(t *testing.T) {
	full := `[{"script":"one","image_description":"d1"},{"script":"two","image_description":"d2"},{"script":"three","image_description":"d3"}]`

	// Feed the same stream in three different chunkings; each prefix's
	// emission must be a strict prefix of the next.
	e := NewExtractor()
	var all []string
	for i := 0; i < len(full); i += 7 {
		end := i + 7
		if end > len(full) {
			end = len(full)
		}
		for _, s := range e.Append(full[i:end]) {
			all = append(all, s.Script)
		}
	}

	assert.Equal(t, []string{"one", "two", "three"}, all)
}

func TestAppend_DanglingComma(t *testing.T) {
	e := NewExtractor()
	got := e.Append(`[{"script":"a","image_description":"b"},`)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Script)
}

func TestAppend_BracesInsideStrings(t *testing.T) {
	e := NewExtractor()
	got := e.Append(`[{"script":"say {hi} [ok] \"done\"","image_description":"b"}]`)
	require.Len(t, got, 1)
	assert.Equal(t, `say {hi} [ok] "done"`, got[0].Script)
}

func TestAppend_NestedObject(t *testing.T) {
	// Not the instructed shape, but nested braces must not break the scan.
	e := NewExtractor()
	got := e.Append(`[{"script":"a","image_description":"b"},{"script":"c","image_description":"d"`)
	require.Len(t, got, 1)

	got = e.Append(`}]`)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Script)
}

func TestAppend_LeadingProse(t *testing.T) {
	// Models sometimes preface the array despite instructions.
	e := NewExtractor()
	got := e.Append("Here is your script:\n[{\"script\":\"a\",\"image_description\":\"b\"}]")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Script)
}

func TestAppend_MalformedYieldsNothing(t *testing.T) {
	e := NewExtractor()
	assert.Empty(t, e.Append("I cannot"))
	assert.Empty(t, e.Append(" help with that."))
}

func TestFinish_CatchesLastScene(t *testing.T) {
	e := NewExtractor()
	assert.Empty(t, e.Append(`[{"script":"a","image_description":"b"`))

	// The closing brace only arrives with the final chunk.
	got := e.Append(`}`)
	if len(got) == 0 {
		var err error
		got, err = e.Finish()
		require.NoError(t, err)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Script)
}

func TestFinish_MalformedStreamIsTerminalError(t *testing.T) {
	e := NewExtractor()
	e.Append("not json at all")

	_, err := e.Finish()
	assert.ErrorIs(t, err, ErrNoScenes)
}

func TestFinish_EmptyStream(t *testing.T) {
	e := NewExtractor()
	_, err := e.Finish()
	assert.ErrorIs(t, err, ErrNoScenes)
}

func TestEmitted(t *testing.T) {
	e := NewExtractor()
	assert.Equal(t, 0, e.Emitted())
	e.Append(`[{"script":"a","image_description":"b"}]`)
	assert.Equal(t, 1, e.Emitted())
}
