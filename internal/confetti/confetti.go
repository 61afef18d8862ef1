// Package confetti animates a fixed set of falling particles on a 2D
// surface. The loop is purely decorative and stops only when told to.
package confetti

import (
	"image/color"
	"math"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/PoluyanbIch/TimesTableBot/internal/eventloop"
)

// Particle tuning.
const (
	Count           = 120
	MinRadius       = 4.0
	MaxRadius       = 10.0
	MinSpeed        = 0.5
	MaxSpeed        = 1.0
	FallStep        = 5.0
	DriftWavelength = 20.0
	DriftAmplitude  = 2.0
	// RespawnBand is how far above the top edge recycled particles re-enter.
	RespawnBand = 40.0
)

// Surface is an immediate-mode 2D drawing target.
type Surface interface {
	Clear()
	FillCircle(x, y, radius float64, c color.Color)
}

// Particle is one piece of confetti.
type Particle struct {
	X, Y   float64
	Radius float64
	Speed  float64
	Color  color.RGBA
}

// Loop owns the particle set and redraws it every frame while active.
type Loop struct {
	sched     eventloop.Scheduler
	surface   Surface
	rng       *rand.Rand
	particles []Particle
	width     float64
	height    float64
	active    bool
	frame     eventloop.Timer
}

// New returns an inactive loop drawing on surface.
func New(sched eventloop.Scheduler, surface Surface, rng *rand.Rand) *Loop {
	return &Loop{
		sched:     sched,
		surface:   surface,
		rng:       rng,
		particles: make([]Particle, Count),
	}
}

// Active reports whether frames are being drawn.
func (l *Loop) Active() bool {
	return l.active
}

// Particles returns a copy of the current particle set.
func (l *Loop) Particles() []Particle {
	out := make([]Particle, len(l.particles))
	copy(out, l.particles)
	return out
}

// Start seeds the particles above a width×height viewport and draws the
// first frame. It does nothing while the loop is already active.
func (l *Loop) Start(width, height float64) {
	if l.active {
		return
	}
	l.width, l.height = width, height
	for i := range l.particles {
		l.particles[i] = Particle{
			X:      l.rng.Float64() * width,
			Y:      l.rng.Float64()*height - height,
			Radius: MinRadius + l.rng.Float64()*(MaxRadius-MinRadius),
			Speed:  MinSpeed + l.rng.Float64()*(MaxSpeed-MinSpeed),
			Color:  HSL(l.rng.Float64()*360, 1, 0.5),
		}
	}
	l.active = true
	l.render()
}

// Stop cancels the next frame and clears the surface. Stopping an inactive
// loop is a no-op.
func (l *Loop) Stop() {
	if !l.active {
		return
	}
	l.active = false
	if l.frame != nil {
		l.frame.Stop()
		l.frame = nil
	}
	l.surface.Clear()
}

func (l *Loop) render() {
	if !l.active {
		return
	}
	l.surface.Clear()
	for _, p := range l.particles {
		l.surface.FillCircle(p.X, p.Y, p.Radius, p.Color)
	}
	l.update()
	l.frame = l.sched.NextFrame(l.render)
}

func (l *Loop) update() {
	for i := range l.particles {
		p := &l.particles[i]
		p.Y += p.Speed * FallStep
		p.X += math.Sin(p.Y/DriftWavelength) * DriftAmplitude
		if p.Y > l.height {
			p.Y = -p.Radius - l.rng.Float64()*RespawnBand
			p.X = l.rng.Float64() * l.width
		}
	}
}

// HSL converts hue in degrees, saturation and lightness in [0,1] to RGB.
func HSL(h, s, l float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	r, g, b := colorful.Hsl(h, s, l).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
