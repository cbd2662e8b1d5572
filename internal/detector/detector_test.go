package detector

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/cursorflow/internal/timeutil"
)

func TestDetection_JSON(t *testing.T) {
	ts := time.UnixMilli(1718000000123)
	d := Detection{X: 812, Y: 440, Timestamp: ts}

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":812,"y":440,"timestamp_ms":1718000000123}`, string(data))

	var back Detection
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 812, back.X)
	assert.Equal(t, 440, back.Y)
	assert.True(t, ts.Equal(back.Timestamp))
}

func TestDetection_JSONWithoutTimestamp(t *testing.T) {
	var d Detection
	require.NoError(t, json.Unmarshal([]byte(`{"x":1,"y":2}`), &d))
	assert.True(t, d.Timestamp.IsZero())

	data, err := json.Marshal(Detection{X: 1, Y: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":2}`, string(data))
}

func TestQueue_DrainsInOrder(t *testing.T) {
	q := NewQueue(4)
	q.Push(Detection{X: 1})
	q.Push(Detection{X: 2})

	got, err := q.Detect()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].X)
	assert.Equal(t, 2, got[1].X)

	got, err = q.Detect()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueue_DropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)
	q.Push(Detection{X: 1})
	q.Push(Detection{X: 2})
	q.Push(Detection{X: 3})

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, q.Dropped())

	got, _ := q.Detect()
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].X)
	assert.Equal(t, 3, got[1].X)
}

func TestReplay_PlaysOnePerCall(t *testing.T) {
	clock := timeutil.NewManualClock(time.Unix(100, 0))
	r := NewReplay([]Detection{{X: 1, Y: 1}, {X: 2, Y: 2}}, false, clock)

	first, err := r.Detect()
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, first[0].X)
	assert.True(t, first[0].Timestamp.Equal(time.Unix(100, 0)))

	clock.Advance(50 * time.Millisecond)
	second, _ := r.Detect()
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].X)
	assert.Equal(t, 50*time.Millisecond, second[0].Timestamp.Sub(first[0].Timestamp))

	assert.True(t, r.Done())
	third, _ := r.Detect()
	assert.Empty(t, third)
}

func TestReplay_Loops(t *testing.T) {
	r := NewReplay([]Detection{{X: 1}, {X: 2}}, true, nil)

	var xs []int
	for i := 0; i < 5; i++ {
		got, _ := r.Detect()
		require.Len(t, got, 1)
		xs = append(xs, got[0].X)
	}
	assert.Equal(t, []int{1, 2, 1, 2, 1}, xs)
	assert.False(t, r.Done())

	require.NoError(t, r.Close())
	got, _ := r.Detect()
	assert.Empty(t, got)
}

func TestMockDetector(t *testing.T) {
	m := NewMockDetector()
	m.SetDetections([]Detection{{X: 5, Y: 6}})

	got, err := m.Detect()
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, _ = m.Detect()
	assert.Empty(t, got, "detections are consumed once")

	boom := errors.New("boom")
	m.SetError(boom)
	_, err = m.Detect()
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
}

func TestProcessDetector_ReadsJSONLines(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	script := `#!/bin/sh
echo '{"x":10,"y":20,"timestamp_ms":1000}'
echo 'not json'
echo '{"x":11,"y":21}'
`
	scriptPath := filepath.Join(tmpDir, "detector.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0755))

	d, err := NewProcessDetector(ProcessConfig{Command: scriptPath})
	require.NoError(t, err)
	defer d.Close()

	var got []Detection
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < 2 && time.Now().Before(deadline) {
		batch, err := d.Detect()
		got = append(got, batch...)
		if errors.Is(err, ErrProcessExited) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Len(t, got, 2)
	assert.Equal(t, 10, got[0].X)
	assert.Equal(t, int64(1000), got[0].Timestamp.UnixMilli())
	assert.Equal(t, 11, got[1].X)
	assert.False(t, got[1].Timestamp.IsZero(), "missing timestamps are stamped on arrival")
	assert.Equal(t, 1, d.Skipped())
}

func TestNewProcessDetector_RequiresCommand(t *testing.T) {
	_, err := NewProcessDetector(ProcessConfig{})
	assert.Error(t, err)
}
