// Package scene renders a scripted scenario into synthetic detector frames so
// the tracker can run without a camera.
package scene

import (
	"context"
	"io"
	"math/rand"
	"time"

	"objectwatch/internal/detect"
	"objectwatch/internal/scenario"
)

// Object box size in pixels, roughly a bottle at arm's length.
const (
	objectWidth  = 40
	objectHeight = 100
)

// Config controls frame timing and detector noise.
type Config struct {
	Class       string  // class label of scripted objects
	Width       float64 // frame size, used for distractor placement
	Height      float64
	JitterPx    float64       // uniform centre jitter per axis
	Dropout     float64       // probability a visible object is not detected
	Duplicates  float64       // probability of a second overlapping box for the same object
	Distractors float64       // probability of one other-class detection per frame
	Interval    time.Duration // time between frames
	Start       time.Time     // timestamp of frame 0; zero uses time.Now
	MaxFrames   int           // zero runs forever
}

type object struct {
	id      string
	x, y    float64
	visible bool
}

// Scene steps a scenario frame by frame.
type Scene struct {
	cfg     Config
	sc      *scenario.Scenario
	objects []*object
	byID    map[string]*object
	phase   string
	inPhase int
	frame   int64
	rand    *rand.Rand
}

// New places the scenario's objects and enters its first phase. A nil rng is
// seeded from the clock.
func New(sc *scenario.Scenario, cfg Config, rng *rand.Rand) *Scene {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 33 * time.Millisecond
	}
	if cfg.Class == "" {
		cfg.Class = "bottle"
	}
	s := &Scene{cfg: cfg, sc: sc, byID: make(map[string]*object), rand: rng}
	for _, o := range sc.Objects {
		obj := &object{id: o.ID, x: o.X, y: o.Y, visible: true}
		s.objects = append(s.objects, obj)
		s.byID[o.ID] = obj
	}
	if len(sc.Phases) > 0 {
		s.enter(sc.Phases[0].Name)
	}
	return s
}

// Phase returns the name of the active phase.
func (s *Scene) Phase() string { return s.phase }

// Next renders the next frame. It returns io.EOF after MaxFrames frames.
func (s *Scene) Next(ctx context.Context) (detect.Frame, error) {
	if err := ctx.Err(); err != nil {
		return detect.Frame{}, err
	}
	if s.cfg.MaxFrames > 0 && s.frame >= int64(s.cfg.MaxFrames) {
		return detect.Frame{}, io.EOF
	}
	return s.Step(), nil
}

// Step advances the script by one frame and renders it.
func (s *Scene) Step() detect.Frame {
	if next, ok := s.sc.NextPhase(s.phase, scenario.Event{Type: scenario.EventFramesElapsed, Value: s.inPhase}); ok {
		s.enter(next)
	}

	f := detect.Frame{
		Seq:        s.frame,
		Timestamp:  s.cfg.Start.Add(time.Duration(s.frame) * s.cfg.Interval),
		Detections: []detect.Raw{},
	}
	for _, o := range s.objects {
		if !o.visible || s.rand.Float64() < s.cfg.Dropout {
			continue
		}
		x := o.x + s.jitter()
		y := o.y + s.jitter()
		f.Detections = append(f.Detections, s.box(s.cfg.Class, x, y, 0.75+0.2*s.rand.Float64()))
		if s.rand.Float64() < s.cfg.Duplicates {
			f.Detections = append(f.Detections, s.box(s.cfg.Class, x+2, y+1, 0.5+0.2*s.rand.Float64()))
		}
	}
	if s.rand.Float64() < s.cfg.Distractors {
		x := objectWidth + s.rand.Float64()*max(s.cfg.Width-2*objectWidth, 1)
		y := objectHeight + s.rand.Float64()*max(s.cfg.Height-2*objectHeight, 1)
		f.Detections = append(f.Detections, s.box("cup", x, y, 0.6+0.3*s.rand.Float64()))
	}

	s.inPhase++
	s.frame++
	return f
}

func (s *Scene) jitter() float64 {
	if s.cfg.JitterPx <= 0 {
		return 0
	}
	return (s.rand.Float64()*2 - 1) * s.cfg.JitterPx
}

func (s *Scene) box(class string, x, y, conf float64) detect.Raw {
	return detect.Raw{
		Class:      class,
		Confidence: conf,
		X1:         x - objectWidth/2,
		Y1:         y - objectHeight/2,
		X2:         x + objectWidth/2,
		Y2:         y + objectHeight/2,
	}
}

func (s *Scene) enter(name string) {
	s.phase = name
	s.inPhase = 0
	p, ok := s.sc.Phase(name)
	if !ok {
		return
	}
	for _, a := range p.Actions {
		o, ok := s.byID[a.Object]
		if !ok {
			continue
		}
		switch a.Action {
		case scenario.ActionMove:
			o.x, o.y = a.X, a.Y
		case scenario.ActionHide:
			o.visible = false
		case scenario.ActionShow:
			o.visible = true
		}
	}
}
