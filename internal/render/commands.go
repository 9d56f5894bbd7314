package render

import (
	"encoding/json"

	"github.com/inamate/tokamak/internal/geometry"
)

// PathCommand is a single path instruction: ["M", x, y], ["L", x, y] or ["Z"].
type PathCommand []any

// DrawCommand represents a single drawing operation for the frontend to execute.
// Paths are in world coordinates and Transform maps them to pixels; markers
// are positioned in pixels so they keep their size under zoom.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "path" or "marker"
	Curve       int           `json:"curve"`                 // Curve index for hit correlation
	Index       int           `json:"index,omitempty"`       // Point index within the curve
	Transform   []float64     `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	Path        []PathCommand `json:"path,omitempty"`        // Path data for "path" ops
	X           float64       `json:"x,omitempty"`           // Marker position in pixels
	Y           float64       `json:"y,omitempty"`
	Size        float64       `json:"size,omitempty"`        // Marker diameter
	Fill        string        `json:"fill,omitempty"`        // Fill color
	Stroke      string        `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // Stroke width
	Text        string        `json:"text,omitempty"`        // Label or hover text
}

// Compile generates a draw command buffer for the scene under view.
// Commands are in painter's order (back to front).
func Compile(s *Scene, view Matrix2D) []DrawCommand {
	if s == nil {
		return nil
	}
	var commands []DrawCommand
	for ci, t := range s.Traces {
		switch t.Mode {
		case ModeLines:
			if len(t.Points) == 0 {
				continue
			}
			commands = append(commands, DrawCommand{
				Op:          "path",
				Curve:       ci,
				Transform:   view.ToSlice(),
				Path:        closedPath(t.Points),
				Fill:        t.Fill,
				Stroke:      t.Line,
				StrokeWidth: t.LineWidth,
				Text:        t.Name,
			})
		case ModeMarkers:
			for i, p := range t.Points {
				x, y := view.Apply(p)
				cmd := DrawCommand{
					Op:          "marker",
					Curve:       ci,
					Index:       i,
					X:           x,
					Y:           y,
					Size:        t.MarkerSize,
					Stroke:      "black",
					StrokeWidth: 3,
				}
				if i < len(t.Colors) {
					cmd.Fill = t.Colors[i]
				}
				if i < len(t.Labels) {
					cmd.Text = t.Labels[i]
				}
				commands = append(commands, cmd)
			}
		}
	}
	return commands
}

func closedPath(pts []geometry.Point) []PathCommand {
	path := make([]PathCommand, 0, len(pts)+1)
	for i, p := range pts {
		op := "L"
		if i == 0 {
			op = "M"
		}
		path = append(path, PathCommand{op, p.R, p.Z})
	}
	return append(path, PathCommand{"Z"})
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
