package sketch

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"
)

const (
	DefaultWidth     = 280
	DefaultHeight    = 280
	DefaultLineWidth = 10

	// arcSegments approximates each round cap.
	arcSegments = 16
)

var (
	Background = color.Black
	Ink        = color.White
)

// Surface is a free-hand drawing canvas: black background, white pen with
// round caps. Strokes are antialiased.
type Surface struct {
	mu        sync.Mutex
	img       *image.RGBA
	lineWidth float64
	raster    *vector.Rasterizer

	// per-gesture pen state
	drawing bool
	hasPen  bool
	penX    float64
	penY    float64
}

func NewSurface(width, height int) *Surface {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	s := &Surface{
		img:       image.NewRGBA(image.Rect(0, 0, width, height)),
		lineWidth: DefaultLineWidth,
		raster:    vector.NewRasterizer(width, height),
	}
	s.fill()
	return s
}

func (s *Surface) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// Begin starts a gesture. The pen has no position until the first Move.
func (s *Surface) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = true
	s.hasPen = false
}

// Move extends the current gesture to (x, y). Outside a gesture it is ignored.
func (s *Surface) Move(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.drawing {
		return
	}
	if s.hasPen {
		s.stroke(s.penX, s.penY, x, y)
	}
	s.penX, s.penY, s.hasPen = x, y, true
}

// End finishes the gesture.
func (s *Surface) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = false
	s.hasPen = false
}

// Clear resets every pixel to the background.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fill()
}

// Snapshot copies the surface as it is right now.
func (s *Surface) Snapshot() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return imaging.Clone(s.img)
}

func (s *Surface) fill() {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
}

// stroke paints the segment (ax,ay)-(bx,by) as a capsule of the pen width.
func (s *Surface) stroke(ax, ay, bx, by float64) {
	b := s.img.Bounds()
	s.raster.Reset(b.Dx(), b.Dy())
	capsule(s.raster, ax, ay, bx, by, s.lineWidth/2)
	s.raster.Draw(s.img, b, image.NewUniform(Ink), image.Point{})
}

// capsule traces a closed outline: the segment widened by r on both sides,
// with a half-circle around each end point.
func capsule(z *vector.Rasterizer, ax, ay, bx, by, r float64) {
	angle := math.Atan2(by-ay, bx-ax)
	start := angle + math.Pi/2

	z.MoveTo(float32(ax+r*math.Cos(start)), float32(ay+r*math.Sin(start)))
	arc(z, ax, ay, r, start)
	arc(z, bx, by, r, start+math.Pi)
	z.ClosePath()
}

// arc adds a half-circle around (cx, cy) from angle from, continuing the path.
func arc(z *vector.Rasterizer, cx, cy, r, from float64) {
	for i := 0; i <= arcSegments; i++ {
		a := from + math.Pi*float64(i)/arcSegments
		z.LineTo(float32(cx+r*math.Cos(a)), float32(cy+r*math.Sin(a)))
	}
}
