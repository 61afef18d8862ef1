package confetti

import (
	"errors"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"time"

	"github.com/gogpu/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultMaxFrames bounds the memory a single recording can hold.
const DefaultMaxFrames = 150

// ErrNoFrames is returned by Encode when nothing was drawn.
var ErrNoFrames = errors.New("no frames recorded")

// Recorder is a raster Surface that keeps every drawn frame so the
// animation can be replayed as a GIF. Each Clear closes the frame drawn
// since the previous Clear.
type Recorder struct {
	dc        *gg.Context
	bounds    image.Rectangle
	palette   color.Palette
	delay     int
	maxFrames int
	caption   string
	frames    []*image.Paletted
	drawn     bool
}

// NewRecorder records width×height frames shown every frameInterval.
func NewRecorder(width, height int, frameInterval time.Duration) *Recorder {
	delay := int(frameInterval / (10 * time.Millisecond))
	if delay < 2 {
		delay = 2
	}
	r := &Recorder{
		dc:        gg.NewContext(width, height),
		bounds:    image.Rect(0, 0, width, height),
		palette:   palette.Plan9,
		delay:     delay,
		maxFrames: DefaultMaxFrames,
	}
	r.background()
	return r
}

// SetCaption stamps text on the bottom-left of every subsequent frame.
func (r *Recorder) SetCaption(text string) {
	r.caption = text
}

// SetMaxFrames caps how many frames are kept.
func (r *Recorder) SetMaxFrames(n int) {
	if n > 0 {
		r.maxFrames = n
	}
}

// Frames reports how many frames have been closed.
func (r *Recorder) Frames() int {
	return len(r.frames)
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.frames = nil
	r.drawn = false
	r.background()
}

// Clear implements Surface.
func (r *Recorder) Clear() {
	if r.drawn && len(r.frames) < r.maxFrames {
		r.frames = append(r.frames, r.snapshot())
	}
	r.background()
	r.drawn = false
}

// FillCircle implements Surface.
func (r *Recorder) FillCircle(x, y, radius float64, c color.Color) {
	r.drawn = true
	cr, cg, cb, _ := c.RGBA()
	r.dc.SetRGB(float64(cr)/0xffff, float64(cg)/0xffff, float64(cb)/0xffff)
	r.dc.DrawCircle(x, y, radius)
	r.dc.Fill()
}

// Encode writes the recorded frames as a looping GIF.
func (r *Recorder) Encode(w io.Writer) error {
	if len(r.frames) == 0 {
		return ErrNoFrames
	}
	delays := make([]int, len(r.frames))
	for i := range delays {
		delays[i] = r.delay
	}
	return gif.EncodeAll(w, &gif.GIF{
		Image: r.frames,
		Delay: delays,
	})
}

func (r *Recorder) background() {
	r.dc.SetRGB(1, 1, 1)
	r.dc.DrawRectangle(0, 0, float64(r.bounds.Dx()), float64(r.bounds.Dy()))
	r.dc.Fill()
}

// snapshot quantizes the current canvas to the GIF palette.
func (r *Recorder) snapshot() *image.Paletted {
	frame := image.NewPaletted(r.bounds, r.palette)
	draw.Draw(frame, r.bounds, r.dc.Image(), image.Point{}, draw.Src)
	r.stampCaption(frame)
	return frame
}

func (r *Recorder) stampCaption(img *image.Paletted) {
	if r.caption == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(6, r.bounds.Dy()-6),
	}
	d.DrawString(r.caption)
}
