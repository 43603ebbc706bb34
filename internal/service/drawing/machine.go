// Package drawing implements the tool-gated annotation state machine that sits on top of the chart.
//
// Pointer events arrive in screen coordinates and are translated into the chart container's
// coordinate space. Drawings are pixel-anchored: they do not follow later pans or zooms of the
// price scale.
package drawing

import (
	"math"
	"sync"
	"time"

	"ChartDesk/internal/domain/models"
)

// State is the interaction state of the machine.
type State string

const (
	StateIdle     State = "idle"
	StatePlacing  State = "placing"
	StateDragging State = "dragging"
)

// TextPrompter asks for the label of a text annotation. ok=false means the prompt was cancelled.
type TextPrompter interface {
	PromptText(at models.Point) (text string, ok bool)
}

// PromptFunc adapts a function to TextPrompter.
type PromptFunc func(at models.Point) (string, bool)

func (f PromptFunc) PromptText(at models.Point) (string, bool) { return f(at) }

// FrameScheduler runs fn once on the next render frame. The returned func cancels it.
type FrameScheduler interface {
	Schedule(fn func()) (cancel func())
}

// PriceProjector converts a price to a container-relative y coordinate.
type PriceProjector interface {
	PriceToCoordinate(price float64) (float64, bool)
}

// Listener observes committed and removed drawings. Calls happen outside the machine lock.
type Listener interface {
	OnCommit(d models.Drawing)
	OnRemove(d models.Drawing)
}

// Style is applied to new drawings.
type Style struct {
	LineColor       string
	HorizontalColor string
	TextColor       string
	LineWidth       float64
	HitTolerance    float64
	CharWidth       float64
	TextHeight      float64
}

// DefaultStyle returns the stock annotation style.
func DefaultStyle() Style {
	return Style{
		LineColor:       "#2962FF",
		HorizontalColor: "#FF9800",
		TextColor:       "#D1D4DC",
		LineWidth:       2,
		HitTolerance:    6,
		CharWidth:       7,
		TextHeight:      14,
	}
}

// Snapshot is a consistent copy of the machine state.
type Snapshot struct {
	Tool        models.Tool         `json:"tool"`
	State       State               `json:"state"`
	Bounds      models.Rect         `json:"bounds"`
	Drawings    []models.Drawing    `json:"drawings"`
	Provisional *models.Drawing     `json:"provisional,omitempty"`
	Measurement *models.Measurement `json:"measurement,omitempty"`
}

// Option configures a Machine.
type Option func(*Machine)

// WithPrompter sets the text prompter.
func WithPrompter(p TextPrompter) Option { return func(m *Machine) { m.prompter = p } }

// WithFrameScheduler overrides the frame scheduler.
func WithFrameScheduler(s FrameScheduler) Option { return func(m *Machine) { m.frames = s } }

// WithStyle overrides the drawing style.
func WithStyle(s Style) Option { return func(m *Machine) { m.style = s } }

// WithListener registers the commit/remove listener.
func WithListener(l Listener) Option { return func(m *Machine) { m.listener = l } }

// Machine is safe for concurrent use.
type Machine struct {
	mu sync.Mutex

	tool     models.Tool
	state    State
	bounds   models.Rect
	drawings []models.Drawing
	nextID   int64

	provisional *models.Drawing
	measuring   bool
	measurement *models.Measurement

	pendingMove *models.Point
	cancelFrame func()
	frameSeq    uint64
	placingSeq  uint64

	prompter TextPrompter
	frames   FrameScheduler
	style    Style
	listener Listener
}

// NewMachine creates a machine in the idle state with the cursor tool.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		tool:   models.ToolCursor,
		state:  StateIdle,
		nextID: 1,
		frames: NewTimerFrames(16 * time.Millisecond),
		style:  DefaultStyle(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetPrompter swaps the text prompter.
func (m *Machine) SetPrompter(p TextPrompter) {
	m.mu.Lock()
	m.prompter = p
	m.mu.Unlock()
}

// SetBounds records the container box used to translate pointer coordinates.
func (m *Machine) SetBounds(r models.Rect) {
	m.mu.Lock()
	m.bounds = r
	m.mu.Unlock()
}

// SetTool switches the active tool. Switching away mid-drag cancels the provisional drawing.
func (m *Machine) SetTool(t models.Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t == m.tool {
		return
	}
	m.tool = t
	if m.state != StateIdle {
		m.resetInteraction()
	}
}

// Tool returns the active tool.
func (m *Machine) Tool() models.Tool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tool
}

// State returns the interaction state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PointerDown handles a press at a screen position. It reports whether the event was consumed.
func (m *Machine) PointerDown(screen models.Point) bool {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return false
	}
	p := m.toLocal(screen)

	switch m.tool {
	case models.ToolTrendLine:
		m.provisional = &models.Drawing{Kind: models.KindLine, Start: p, End: p, Color: m.style.LineColor, Width: m.style.LineWidth}
		m.state = StateDragging
		m.mu.Unlock()
		return true

	case models.ToolHorizontalLine:
		m.provisional = &models.Drawing{Kind: models.KindHorizontalLine, Start: p, Y: p.Y, Color: m.style.HorizontalColor, Width: m.style.LineWidth}
		m.state = StateDragging
		m.mu.Unlock()
		return true

	case models.ToolMeasure:
		m.measuring = true
		m.measurement = &models.Measurement{From: p, To: p}
		m.state = StateDragging
		m.mu.Unlock()
		return true

	case models.ToolText:
		m.state = StatePlacing
		m.placingSeq++
		seq := m.placingSeq
		prompter := m.prompter
		m.mu.Unlock()
		m.placeText(seq, prompter, p)
		return true

	case models.ToolDelete:
		idx := m.hitLocked(p)
		if idx < 0 {
			m.mu.Unlock()
			return true
		}
		removed := m.drawings[idx]
		m.drawings = append(m.drawings[:idx], m.drawings[idx+1:]...)
		listener := m.listener
		m.mu.Unlock()
		if listener != nil {
			listener.OnRemove(removed)
		}
		return true

	default:
		m.mu.Unlock()
		return false
	}
}

func (m *Machine) placeText(seq uint64, prompter TextPrompter, at models.Point) {
	text, ok := "", false
	if prompter != nil {
		text, ok = prompter.PromptText(at)
	}

	m.mu.Lock()
	if m.state != StatePlacing || m.placingSeq != seq {
		m.mu.Unlock()
		return
	}
	m.state = StateIdle
	if !ok || text == "" {
		m.mu.Unlock()
		return
	}
	d := models.Drawing{Kind: models.KindText, Position: at, Text: text, Color: m.style.TextColor, Width: m.style.LineWidth}
	d = m.commitLocked(d)
	listener := m.listener
	m.mu.Unlock()
	if listener != nil {
		listener.OnCommit(d)
	}
}

// PointerMove records the latest position while dragging. Updates are applied once per frame.
func (m *Machine) PointerMove(screen models.Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateDragging {
		return false
	}
	p := m.toLocal(screen)
	m.pendingMove = &p
	if m.cancelFrame == nil {
		m.frameSeq++
		seq := m.frameSeq
		m.cancelFrame = m.frames.Schedule(func() { m.flushFrame(seq) })
	}
	return true
}

func (m *Machine) flushFrame(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.frameSeq || m.cancelFrame == nil {
		return
	}
	m.cancelFrame = nil
	m.applyPendingLocked()
}

func (m *Machine) applyPendingLocked() {
	if m.pendingMove == nil {
		return
	}
	p := *m.pendingMove
	m.pendingMove = nil
	switch {
	case m.measuring && m.measurement != nil:
		m.measurement.To = p
		m.measurement.DX = p.X - m.measurement.From.X
		m.measurement.DY = p.Y - m.measurement.From.Y
	case m.provisional != nil && m.provisional.Kind == models.KindHorizontalLine:
		m.provisional.Y = p.Y
	case m.provisional != nil:
		m.provisional.End = p
	}
}

// PointerUp finishes a drag. Line drags are committed; measure drags are kept as the last measurement.
func (m *Machine) PointerUp(screen models.Point) bool {
	m.mu.Lock()
	if m.state != StateDragging {
		m.mu.Unlock()
		return false
	}
	p := m.toLocal(screen)
	m.pendingMove = &p
	m.stopFrameLocked()
	m.applyPendingLocked()
	m.state = StateIdle

	if m.measuring {
		m.measuring = false
		m.mu.Unlock()
		return true
	}

	d := *m.provisional
	m.provisional = nil
	d = m.commitLocked(d)
	listener := m.listener
	m.mu.Unlock()
	if listener != nil {
		listener.OnCommit(d)
	}
	return true
}

// AddHorizontalAtPrice commits a horizontal line at the pixel height the price has right now.
func (m *Machine) AddHorizontalAtPrice(price float64, projector PriceProjector) (models.Drawing, bool) {
	if projector == nil {
		return models.Drawing{}, false
	}
	y, ok := projector.PriceToCoordinate(price)
	if !ok {
		return models.Drawing{}, false
	}
	m.mu.Lock()
	d := m.commitLocked(models.Drawing{
		Kind:  models.KindHorizontalLine,
		Start: models.Point{X: 0, Y: y},
		Y:     y,
		Color: m.style.HorizontalColor,
		Width: m.style.LineWidth,
	})
	listener := m.listener
	m.mu.Unlock()
	if listener != nil {
		listener.OnCommit(d)
	}
	return d, true
}

// Delete removes a drawing by id.
func (m *Machine) Delete(id int64) bool {
	m.mu.Lock()
	idx := -1
	for i, d := range m.drawings {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	removed := m.drawings[idx]
	m.drawings = append(m.drawings[:idx], m.drawings[idx+1:]...)
	listener := m.listener
	m.mu.Unlock()
	if listener != nil {
		listener.OnRemove(removed)
	}
	return true
}

// Clear removes every drawing and any in-flight interaction. It returns the number removed.
func (m *Machine) Clear() int {
	m.mu.Lock()
	removed := m.drawings
	m.drawings = nil
	m.resetInteraction()
	m.measurement = nil
	listener := m.listener
	m.mu.Unlock()
	if listener != nil {
		for _, d := range removed {
			listener.OnRemove(d)
		}
	}
	return len(removed)
}

// Drawings returns committed drawings in creation order.
func (m *Machine) Drawings() []models.Drawing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Drawing(nil), m.drawings...)
}

// Provisional returns the drawing being dragged, if any.
func (m *Machine) Provisional() (models.Drawing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.provisional == nil {
		return models.Drawing{}, false
	}
	return *m.provisional, true
}

// Measurement returns the last measure-tool result.
func (m *Machine) Measurement() (models.Measurement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.measurement == nil {
		return models.Measurement{}, false
	}
	return *m.measurement, true
}

// Snapshot copies the full machine state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		Tool:     m.tool,
		State:    m.state,
		Bounds:   m.bounds,
		Drawings: append([]models.Drawing{}, m.drawings...),
	}
	if m.provisional != nil {
		p := *m.provisional
		s.Provisional = &p
	}
	if m.measurement != nil {
		ms := *m.measurement
		s.Measurement = &ms
	}
	return s
}

func (m *Machine) commitLocked(d models.Drawing) models.Drawing {
	d.ID = m.nextID
	m.nextID++
	m.drawings = append(m.drawings, d)
	return d
}

func (m *Machine) resetInteraction() {
	m.stopFrameLocked()
	m.pendingMove = nil
	m.provisional = nil
	if m.measuring {
		m.measuring = false
		m.measurement = nil
	}
	m.state = StateIdle
}

func (m *Machine) stopFrameLocked() {
	if m.cancelFrame != nil {
		m.cancelFrame()
		m.cancelFrame = nil
	}
	m.frameSeq++
}

func (m *Machine) toLocal(screen models.Point) models.Point {
	x := screen.X - m.bounds.Left
	y := screen.Y - m.bounds.Top
	return models.Point{X: clamp(x, m.bounds.Width), Y: clamp(y, m.bounds.Height)}
}

func clamp(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if limit > 0 && v > limit {
		return limit
	}
	return v
}

// hitLocked returns the index of the topmost drawing under p, or -1.
func (m *Machine) hitLocked(p models.Point) int {
	tol := m.style.HitTolerance
	for i := len(m.drawings) - 1; i >= 0; i-- {
		d := m.drawings[i]
		switch d.Kind {
		case models.KindLine:
			if segmentDistance(p, d.Start, d.End) <= tol {
				return i
			}
		case models.KindHorizontalLine:
			if math.Abs(p.Y-d.Y) <= tol {
				return i
			}
		case models.KindText:
			w := float64(len([]rune(d.Text))) * m.style.CharWidth
			if p.X >= d.Position.X-tol && p.X <= d.Position.X+w+tol &&
				p.Y >= d.Position.Y-m.style.TextHeight-tol && p.Y <= d.Position.Y+tol {
				return i
			}
		}
	}
	return -1
}

func segmentDistance(p, a, b models.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	if dx == 0 && dy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
