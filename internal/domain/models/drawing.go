package models

// Tool is the externally selected drawing tool.
type Tool string

const (
	ToolCursor         Tool = "cursor"
	ToolTrendLine      Tool = "trend-line"
	ToolHorizontalLine Tool = "horizontal-line"
	ToolText           Tool = "text"
	ToolMeasure        Tool = "measure"
	ToolDelete         Tool = "delete"
)

// ParseTool maps a raw name to a Tool, falling back to the cursor.
func ParseTool(s string) Tool {
	switch t := Tool(s); t {
	case ToolCursor, ToolTrendLine, ToolHorizontalLine, ToolText, ToolMeasure, ToolDelete:
		return t
	default:
		return ToolCursor
	}
}

// DrawingKind discriminates the Drawing union.
type DrawingKind string

const (
	KindLine           DrawingKind = "line"
	KindHorizontalLine DrawingKind = "horizontal-line"
	KindText           DrawingKind = "text"
)

// Point is a container-relative pixel position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the chart container box in screen coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Drawing is a pixel-anchored annotation. Only the fields of its Kind are meaningful.
type Drawing struct {
	ID       int64       `json:"id"`
	Kind     DrawingKind `json:"kind"`
	Start    Point       `json:"start"`
	End      Point       `json:"end"`
	Y        float64     `json:"y,omitempty"`
	Position Point       `json:"position"`
	Text     string      `json:"text,omitempty"`
	Color    string      `json:"color"`
	Width    float64     `json:"width"`
}

// Measurement is the transient result of the measure tool.
type Measurement struct {
	From Point   `json:"from"`
	To   Point   `json:"to"`
	DX   float64 `json:"dx"`
	DY   float64 `json:"dy"`
}
