package drawing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChartDesk/internal/domain/models"
)

type manualFrames struct {
	mu      sync.Mutex
	pending []func()
}

func (f *manualFrames) Schedule(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.pending)
	f.pending = append(f.pending, fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.pending) {
			f.pending[idx] = nil
		}
	}
}

func (f *manualFrames) Fire() int {
	f.mu.Lock()
	fns := f.pending
	f.pending = nil
	f.mu.Unlock()
	n := 0
	for _, fn := range fns {
		if fn != nil {
			fn()
			n++
		}
	}
	return n
}

type recordingListener struct {
	committed []models.Drawing
	removed   []models.Drawing
}

func (r *recordingListener) OnCommit(d models.Drawing) { r.committed = append(r.committed, d) }
func (r *recordingListener) OnRemove(d models.Drawing) { r.removed = append(r.removed, d) }

type fixedProjector struct {
	y  float64
	ok bool
}

func (p fixedProjector) PriceToCoordinate(float64) (float64, bool) { return p.y, p.ok }

func newTestMachine(opts ...Option) (*Machine, *manualFrames, *recordingListener) {
	frames := &manualFrames{}
	listener := &recordingListener{}
	m := NewMachine(append([]Option{WithFrameScheduler(frames), WithListener(listener)}, opts...)...)
	m.SetBounds(models.Rect{Left: 100, Top: 50, Width: 800, Height: 400})
	return m, frames, listener
}

func pt(x, y float64) models.Point { return models.Point{X: x, Y: y} }

func TestMachine_TrendLineDragCommits(t *testing.T) {
	m, frames, listener := newTestMachine()
	m.SetTool(models.ToolTrendLine)

	require.True(t, m.PointerDown(pt(110, 60)))
	assert.Equal(t, StateDragging, m.State())

	prov, ok := m.Provisional()
	require.True(t, ok)
	assert.Equal(t, prov.Start, prov.End, "both endpoints start at the press")

	require.True(t, m.PointerUp(pt(300, 200)))

	assert.Equal(t, StateIdle, m.State())
	drawings := m.Drawings()
	require.Len(t, drawings, 1)
	assert.Equal(t, models.KindLine, drawings[0].Kind)
	assert.Equal(t, int64(1), drawings[0].ID)
	assert.Equal(t, pt(10, 10), drawings[0].Start)
	assert.Equal(t, pt(200, 150), drawings[0].End)
	assert.Len(t, listener.committed, 1)
	assert.Zero(t, frames.Fire(), "up cancels the pending frame")
}

func TestMachine_MovesAreCoalescedPerFrame(t *testing.T) {
	m, frames, _ := newTestMachine()
	m.SetTool(models.ToolTrendLine)
	m.PointerDown(pt(100, 50))

	m.PointerMove(pt(120, 60))
	m.PointerMove(pt(130, 70))
	m.PointerMove(pt(140, 80))

	prov, _ := m.Provisional()
	assert.Equal(t, pt(0, 0), prov.End, "nothing applied before the frame")

	assert.Equal(t, 1, frames.Fire(), "one frame for three moves")
	prov, _ = m.Provisional()
	assert.Equal(t, pt(40, 30), prov.End)

	m.PointerMove(pt(150, 90))
	assert.Equal(t, 1, frames.Fire())
	prov, _ = m.Provisional()
	assert.Equal(t, pt(50, 40), prov.End)
}

func TestMachine_HorizontalLineTracksY(t *testing.T) {
	m, frames, _ := newTestMachine()
	m.SetTool(models.ToolHorizontalLine)

	m.PointerDown(pt(200, 150))
	m.PointerMove(pt(250, 175))
	frames.Fire()

	prov, ok := m.Provisional()
	require.True(t, ok)
	assert.Equal(t, 125.0, prov.Y)

	m.PointerUp(pt(260, 180))
	d := m.Drawings()
	require.Len(t, d, 1)
	assert.Equal(t, models.KindHorizontalLine, d[0].Kind)
	assert.Equal(t, 130.0, d[0].Y)
}

func TestMachine_CursorDoesNotConsume(t *testing.T) {
	m, _, _ := newTestMachine()

	assert.False(t, m.PointerDown(pt(200, 200)))
	assert.False(t, m.PointerMove(pt(210, 210)))
	assert.False(t, m.PointerUp(pt(210, 210)))
	assert.Empty(t, m.Drawings())
}

func TestMachine_SwitchToCursorMidDragCancels(t *testing.T) {
	m, frames, listener := newTestMachine()
	m.SetTool(models.ToolTrendLine)
	m.PointerDown(pt(150, 100))
	m.PointerMove(pt(200, 150))

	m.SetTool(models.ToolCursor)

	assert.Equal(t, StateIdle, m.State())
	_, ok := m.Provisional()
	assert.False(t, ok)
	assert.Zero(t, frames.Fire())
	assert.False(t, m.PointerUp(pt(300, 300)))
	assert.Empty(t, m.Drawings())
	assert.Empty(t, listener.committed)
}

func TestMachine_TextPrompt(t *testing.T) {
	var asked []models.Point
	answer, accept := "breakout", true
	m, _, listener := newTestMachine(WithPrompter(PromptFunc(func(at models.Point) (string, bool) {
		asked = append(asked, at)
		return answer, accept
	})))
	m.SetTool(models.ToolText)

	require.True(t, m.PointerDown(pt(400, 300)))
	assert.Equal(t, StateIdle, m.State())
	require.Len(t, m.Drawings(), 1)
	assert.Equal(t, "breakout", m.Drawings()[0].Text)
	assert.Equal(t, pt(300, 250), m.Drawings()[0].Position)

	accept = false
	m.PointerDown(pt(410, 310))
	answer, accept = "", true
	m.PointerDown(pt(420, 320))

	assert.Len(t, asked, 3)
	assert.Len(t, m.Drawings(), 1, "cancelled and empty prompts commit nothing")
	assert.Len(t, listener.committed, 1)
}

func TestMachine_TextWithoutPrompterIsCancelled(t *testing.T) {
	m, _, _ := newTestMachine()
	m.SetTool(models.ToolText)

	m.PointerDown(pt(400, 300))

	assert.Equal(t, StateIdle, m.State())
	assert.Empty(t, m.Drawings())
}

func TestMachine_DeleteToolRemovesTopmostHit(t *testing.T) {
	m, _, listener := newTestMachine()
	m.SetTool(models.ToolHorizontalLine)
	m.PointerDown(pt(100, 150))
	m.PointerUp(pt(100, 150))
	m.PointerDown(pt(100, 152))
	m.PointerUp(pt(100, 152))
	m.SetTool(models.ToolTrendLine)
	m.PointerDown(pt(100, 300))
	m.PointerUp(pt(500, 300))
	require.Len(t, m.Drawings(), 3)

	m.SetTool(models.ToolDelete)
	require.True(t, m.PointerDown(pt(400, 151)))

	left := m.Drawings()
	require.Len(t, left, 2)
	assert.Equal(t, int64(1), left[0].ID)
	assert.Equal(t, int64(3), left[1].ID)
	require.Len(t, listener.removed, 1)
	assert.Equal(t, int64(2), listener.removed[0].ID)

	m.PointerDown(pt(880, 420))
	assert.Len(t, m.Drawings(), 2, "empty canvas is a no-op")
}

func TestMachine_DeleteByIDAndClear(t *testing.T) {
	m, _, listener := newTestMachine()
	m.SetTool(models.ToolTrendLine)
	for i := 0; i < 3; i++ {
		m.PointerDown(pt(100, 50+float64(i)*10))
		m.PointerUp(pt(200, 60+float64(i)*10))
	}

	assert.True(t, m.Delete(2))
	assert.False(t, m.Delete(2))
	ids := []int64{}
	for _, d := range m.Drawings() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []int64{1, 3}, ids)

	assert.Equal(t, 2, m.Clear())
	assert.Empty(t, m.Drawings())
	assert.Len(t, listener.removed, 3)

	m.PointerDown(pt(100, 50))
	m.PointerUp(pt(110, 60))
	assert.Equal(t, int64(4), m.Drawings()[0].ID, "ids keep increasing after clear")
}

func TestMachine_MeasureIsNeverCommitted(t *testing.T) {
	m, frames, listener := newTestMachine()
	m.SetTool(models.ToolMeasure)

	m.PointerDown(pt(100, 100))
	m.PointerMove(pt(150, 80))
	frames.Fire()
	got, ok := m.Measurement()
	require.True(t, ok)
	assert.Equal(t, 50.0, got.DX)
	assert.Equal(t, -20.0, got.DY)

	m.PointerUp(pt(160, 70))
	got, _ = m.Measurement()
	assert.Equal(t, 60.0, got.DX)
	assert.Equal(t, -30.0, got.DY)
	assert.Empty(t, m.Drawings())
	assert.Empty(t, listener.committed)

	m.PointerDown(pt(300, 300))
	got, _ = m.Measurement()
	assert.Zero(t, got.DX, "a new measure replaces the last one")
}

func TestMachine_ClampsToBounds(t *testing.T) {
	m, _, _ := newTestMachine()
	m.SetTool(models.ToolTrendLine)

	m.PointerDown(pt(20, 10))
	m.PointerUp(pt(2000, 2000))

	d := m.Drawings()[0]
	assert.Equal(t, pt(0, 0), d.Start)
	assert.Equal(t, pt(800, 400), d.End)
}

func TestMachine_AddHorizontalAtPrice(t *testing.T) {
	m, _, listener := newTestMachine()

	d, ok := m.AddHorizontalAtPrice(101.5, fixedProjector{y: 42, ok: true})
	require.True(t, ok)
	assert.Equal(t, 42.0, d.Y)
	assert.Equal(t, models.KindHorizontalLine, d.Kind)
	assert.Len(t, listener.committed, 1)

	_, ok = m.AddHorizontalAtPrice(1, fixedProjector{ok: false})
	assert.False(t, ok)
	_, ok = m.AddHorizontalAtPrice(1, nil)
	assert.False(t, ok)
	assert.Len(t, m.Drawings(), 1)
}

func TestMachine_Snapshot(t *testing.T) {
	m, _, _ := newTestMachine()
	m.SetTool(models.ToolTrendLine)
	m.PointerDown(pt(150, 100))

	s := m.Snapshot()
	assert.Equal(t, models.ToolTrendLine, s.Tool)
	assert.Equal(t, StateDragging, s.State)
	require.NotNil(t, s.Provisional)
	assert.Nil(t, s.Measurement)
	assert.NotNil(t, s.Drawings)
}
