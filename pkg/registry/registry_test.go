package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneforge/pkg/model"
)

func addScene(t *testing.T, r *Registry, script string) model.Scene {
	t.Helper()
	return r.AddScene(model.Scene{Script: script, ImageDescription: "desc " + script})
}

func TestSceneIndexContiguity(t *testing.T) {
	r := New()
	a := addScene(t, r, "a")
	addScene(t, r, "b")
	c := addScene(t, r, "c")
	addScene(t, r, "d")

	require.NoError(t, r.RemoveScene(a.ID))
	require.NoError(t, r.Reorder(2, 0))
	require.NoError(t, r.RemoveScene(c.ID))
	addScene(t, r, "e")

	scenes := r.Scenes()
	for i, s := range scenes {
		assert.Equal(t, i, s.Index, "scene %q", s.Script)
	}
	assert.Len(t, scenes, 3)
}

func TestReorder_MovesScene(t *testing.T) {
	r := New()
	addScene(t, r, "a")
	addScene(t, r, "b")
	addScene(t, r, "c")

	require.NoError(t, r.Reorder(0, 2))

	var scripts []string
	for _, s := range r.Scenes() {
		scripts = append(scripts, s.Script)
	}
	assert.Equal(t, []string{"b", "c", "a"}, scripts)
}

func TestReorder_OutOfRange(t *testing.T) {
	r := New()
	addScene(t, r, "a")
	assert.Error(t, r.Reorder(0, 5))
	assert.Error(t, r.Reorder(-1, 0))
}

func TestUpdateScene_MarksEdited(t *testing.T) {
	r := New()
	s := addScene(t, r, "a")

	require.NoError(t, r.UpdateScene(s.ID, "new script", "new desc"))

	got := r.Scenes()[0]
	assert.True(t, got.IsEdited)
	assert.Equal(t, "new script", got.Script)
}

func TestStatusTransitions_LegalPath(t *testing.T) {
	r := New()
	s := addScene(t, r, "a")
	id := r.CreateAsset(s.ID, model.AssetImage)

	require.NoError(t, r.UpdateStatus(id, model.StatusGenerating, ""))
	require.NoError(t, r.UpdateStatus(id, model.StatusFailed, "network error"))

	a, err := r.Asset(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, a.Status)
	assert.Equal(t, "network error", a.Error)

	// Retry path: failed -> generating, count bumped, error cleared.
	require.NoError(t, r.Retry(id))
	require.NoError(t, r.UpdateStatus(id, model.StatusGenerating, ""))

	a, err = r.Asset(id)
	require.NoError(t, err)
	assert.Equal(t, 1, a.RetryCount)
	assert.Empty(t, a.Error)

	require.NoError(t, r.SetResult(id, []byte{1, 2}, "data:image/png;base64,AQI=", 0))
	a, err = r.Asset(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, a.Status)
}

func TestStatusTransitions_IllegalMoves(t *testing.T) {
	r := New()
	s := addScene(t, r, "a")
	id := r.CreateAsset(s.ID, model.AssetImage)

	// pending -> complete skips generating.
	assert.Error(t, r.UpdateStatus(id, model.StatusComplete, ""))
	assert.Error(t, r.SetResult(id, nil, "", 0))

	require.NoError(t, r.UpdateStatus(id, model.StatusGenerating, ""))
	require.NoError(t, r.SetResult(id, nil, "", 0))

	// complete is terminal.
	assert.Error(t, r.UpdateStatus(id, model.StatusGenerating, ""))
	assert.Error(t, r.UpdateStatus(id, model.StatusFailed, "x"))
}

func TestRetry_OnlyFromFailed(t *testing.T) {
	r := New()
	s := addScene(t, r, "a")
	id := r.CreateAsset(s.ID, model.AssetAudio)

	assert.Error(t, r.Retry(id))
}

func TestUnknownIDsFailLoudly(t *testing.T) {
	r := New()

	assert.ErrorIs(t, r.UpdateStatus("nope", model.StatusGenerating, ""), ErrAssetNotFound)
	assert.ErrorIs(t, r.SetResult("nope", nil, "", 0), ErrAssetNotFound)
	assert.ErrorIs(t, r.SetTiming("nope", model.AudioTiming{}), ErrAssetNotFound)
	assert.ErrorIs(t, r.Retry("nope"), ErrAssetNotFound)
	assert.ErrorIs(t, r.RemoveScene("nope"), ErrSceneNotFound)
	assert.ErrorIs(t, r.UpdateScene("nope", "", ""), ErrSceneNotFound)

	_, err := r.Asset("nope")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestSetTiming_AudioOnly(t *testing.T) {
	r := New()
	s := addScene(t, r, "a")
	img := r.CreateAsset(s.ID, model.AssetImage)
	aud := r.CreateAsset(s.ID, model.AssetAudio)

	assert.Error(t, r.SetTiming(img, model.AudioTiming{}))

	timing := model.AudioTiming{
		Words:         []model.WordTiming{{Word: "hi", Start: 0, End: 0.2}},
		TotalDuration: 0.2,
	}
	require.NoError(t, r.SetTiming(aud, timing))

	got, ok := r.Timing(aud)
	require.True(t, ok)
	assert.Equal(t, aud, got.AssetID)
	assert.Equal(t, 0.2, got.TotalDuration)
}

func TestAssetsForScene(t *testing.T) {
	r := New()
	s1 := addScene(t, r, "a")
	s2 := addScene(t, r, "b")

	img := r.CreateAsset(s1.ID, model.AssetImage)
	aud := r.CreateAsset(s1.ID, model.AssetAudio)
	r.CreateAsset(s2.ID, model.AssetImage)

	got := r.AssetsForScene(s1.ID)
	require.NotNil(t, got.Image)
	require.NotNil(t, got.Audio)
	assert.Equal(t, img, got.Image.ID)
	assert.Equal(t, aud, got.Audio.ID)

	empty := r.AssetsForScene("missing")
	assert.Nil(t, empty.Image)
	assert.Nil(t, empty.Audio)
}

func TestQueue_FIFO(t *testing.T) {
	r := New()
	r.Enqueue("a", "b", "c")
	r.Dequeue("b")
	assert.Equal(t, []string{"a", "c"}, r.Queue())

	r.Dequeue("missing") // no-op
	assert.Equal(t, []string{"a", "c"}, r.Queue())
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	r := New()
	events, cancel := r.Subscribe()
	defer cancel()

	s := r.AddScene(model.Scene{Script: "a"})
	id := r.CreateAsset(s.ID, model.AssetAudio)
	require.NoError(t, r.UpdateStatus(id, model.StatusGenerating, ""))

	e := <-events
	assert.Equal(t, EventSceneAdded, e.Type)
	require.NotNil(t, e.Scene)
	assert.Equal(t, s.ID, e.Scene.ID)

	e = <-events
	assert.Equal(t, EventAssetStatus, e.Type)
	assert.Equal(t, model.StatusPending, e.Status)

	e = <-events
	assert.Equal(t, EventAssetStatus, e.Type)
	assert.Equal(t, model.StatusGenerating, e.Status)
}

func TestClear(t *testing.T) {
	r := New()
	s := addScene(t, r, "a")
	r.CreateAsset(s.ID, model.AssetImage)
	r.Enqueue("x")

	r.Clear()

	assert.Empty(t, r.Scenes())
	assert.Empty(t, r.Queue())
}
