package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/inamate/tokamak/internal/geometry"
)

var named = map[string]color.NRGBA{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"blue":    {0, 0, 255, 255},
	"orange":  {255, 165, 0, 255},
	"red":     {255, 0, 0, 255},
	"darkred": {139, 0, 0, 255},
	"grid":    {225, 229, 236, 255},
}

// parseColor understands the named colors the scene uses and rgba(r,g,b,a).
func parseColor(s string) (color.NRGBA, error) {
	if c, ok := named[s]; ok {
		return c, nil
	}
	var r, g, b uint8
	var a float64
	if _, err := fmt.Sscanf(strings.ReplaceAll(s, " ", ""), "rgba(%d,%d,%d,%g)", &r, &g, &b, &a); err != nil {
		return color.NRGBA{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return color.NRGBA{r, g, b, uint8(math.Round(math.Max(0, math.Min(1, a)) * 255))}, nil
}

type canvas struct {
	dst  *image.RGBA
	view Matrix2D
	r    *vector.Rasterizer
}

func (c *canvas) begin() {
	b := c.dst.Bounds()
	c.r.Reset(b.Dx(), b.Dy())
	c.r.DrawOp = draw.Over
}

func (c *canvas) paint(col color.Color) {
	c.r.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col), image.Point{})
}

func (c *canvas) polygon(pts [][2]float64) {
	c.r.MoveTo(float32(pts[0][0]), float32(pts[0][1]))
	for _, p := range pts[1:] {
		c.r.LineTo(float32(p[0]), float32(p[1]))
	}
	c.r.ClosePath()
}

// circle winds the same way as the stroke quads so overlapping pieces add up.
func (c *canvas) circle(x, y, radius float64) {
	const n = 24
	pts := make([][2]float64, n)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / n
		pts[i] = [2]float64{x + radius*math.Cos(t), y - radius*math.Sin(t)}
	}
	c.polygon(pts)
}

// stroke outlines a closed pixel-space polygon with square segments and round
// joins.
func (c *canvas) stroke(pts [][2]float64, width float64) {
	hw := width / 2
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		dx, dy := q[0]-p[0], q[1]-p[1]
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*hw, dx/l*hw
		c.polygon([][2]float64{
			{p[0] + nx, p[1] + ny},
			{q[0] + nx, q[1] + ny},
			{q[0] - nx, q[1] - ny},
			{p[0] - nx, p[1] - ny},
		})
		c.circle(p[0], p[1], hw)
	}
}

func (c *canvas) text(x, y int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  c.dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// Rasterize draws the scene into a width x height image: integer-metre grid,
// filled curves, markers, coil labels, axis titles and a legend.
func Rasterize(s *Scene, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("rasterize: bad size %dx%d", width, height)
	}
	c := &canvas{
		dst:  image.NewRGBA(image.Rect(0, 0, width, height)),
		view: s.View(width, height),
		r:    vector.NewRasterizer(width, height),
	}
	draw.Draw(c.dst, c.dst.Bounds(), image.White, image.Point{}, draw.Src)

	c.grid(s)

	for _, t := range s.Traces {
		var err error
		switch t.Mode {
		case ModeLines:
			err = c.lineTrace(t)
		case ModeMarkers:
			err = c.markerTrace(t)
		}
		if err != nil {
			return nil, fmt.Errorf("trace %s: %w", t.Name, err)
		}
	}

	if len(s.Traces) > CurveCoils {
		coils := s.Traces[CurveCoils]
		for i, p := range coils.Points {
			if i >= len(coils.Labels) {
				break
			}
			x, y := c.view.Apply(p)
			c.text(int(x+coils.MarkerSize/2+3), int(y+4), coils.Labels[i], named["black"])
		}
	}

	c.text(width/2-textWidth(s.XTitle)/2, height-12, s.XTitle, named["black"])
	c.text(6, 20, s.YTitle, named["black"])
	if err := c.legend(s, width); err != nil {
		return nil, err
	}
	return c.dst, nil
}

func (c *canvas) grid(s *Scene) {
	b := s.Bounds
	w, h := c.dst.Bounds().Dx(), c.dst.Bounds().Dy()
	c.begin()
	for r := math.Ceil(b.Min.R); r <= b.Max.R; r++ {
		x, _ := c.view.TransformPoint(r, 0)
		c.polygon([][2]float64{{x - 0.5, 0}, {x + 0.5, 0}, {x + 0.5, float64(h)}, {x - 0.5, float64(h)}})
	}
	for z := math.Ceil(b.Min.Z); z <= b.Max.Z; z++ {
		_, y := c.view.TransformPoint(0, z)
		c.polygon([][2]float64{{0, y - 0.5}, {float64(w), y - 0.5}, {float64(w), y + 0.5}, {0, y + 0.5}})
	}
	c.paint(named["grid"])

	for r := math.Ceil(b.Min.R); r <= b.Max.R; r++ {
		x, _ := c.view.TransformPoint(r, 0)
		label := fmt.Sprintf("%g", r)
		c.text(int(x)-textWidth(label)/2, h-30, label, named["black"])
	}
	for z := math.Ceil(b.Min.Z); z <= b.Max.Z; z++ {
		_, y := c.view.TransformPoint(0, z)
		c.text(30, int(y)+4, fmt.Sprintf("%g", z), named["black"])
	}
}

func (c *canvas) pixels(pts []geometry.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i][0], out[i][1] = c.view.Apply(p)
	}
	return out
}

func (c *canvas) lineTrace(t Trace) error {
	if len(t.Points) < 3 {
		return nil
	}
	pts := c.pixels(t.Points)
	if t.Fill != "" {
		col, err := parseColor(t.Fill)
		if err != nil {
			return err
		}
		c.begin()
		c.polygon(pts)
		c.paint(col)
	}
	if t.Line != "" && t.LineWidth > 0 {
		col, err := parseColor(t.Line)
		if err != nil {
			return err
		}
		c.begin()
		c.stroke(pts, t.LineWidth)
		c.paint(col)
	}
	return nil
}

func (c *canvas) markerTrace(t Trace) error {
	radius := t.MarkerSize / 2
	for i, p := range t.Points {
		col := named["black"]
		if i < len(t.Colors) {
			var err error
			if col, err = parseColor(t.Colors[i]); err != nil {
				return err
			}
		}
		x, y := c.view.Apply(p)
		c.begin()
		c.circle(x, y, radius+1.5)
		c.paint(named["black"])
		c.begin()
		c.circle(x, y, radius-1.5)
		c.paint(col)
	}
	return nil
}

func (c *canvas) legend(s *Scene, width int) error {
	x := width - 110
	for i, t := range s.Traces {
		y := 20 + i*18
		swatch := t.Fill
		if t.Mode == ModeMarkers && len(t.Colors) > 0 {
			swatch = t.Colors[0]
		}
		if swatch == "" {
			swatch = t.Line
		}
		if swatch == "" {
			swatch = "black"
		}
		col, err := parseColor(swatch)
		if err != nil {
			return fmt.Errorf("legend %s: %w", t.Name, err)
		}
		c.begin()
		c.polygon([][2]float64{{float64(x), float64(y - 9)}, {float64(x + 12), float64(y - 9)}, {float64(x + 12), float64(y + 1)}, {float64(x), float64(y + 1)}})
		c.paint(col)
		c.begin()
		c.stroke([][2]float64{{float64(x), float64(y - 9)}, {float64(x + 12), float64(y - 9)}, {float64(x + 12), float64(y + 1)}, {float64(x), float64(y + 1)}}, 1)
		c.paint(named["black"])
		c.text(x+18, y, t.Name, named["black"])
	}
	return nil
}

// EncodePNG rasterizes the scene and writes it as a PNG.
func EncodePNG(w io.Writer, s *Scene, width, height int) error {
	img, err := Rasterize(s, width, height)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
