package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"objectwatch/internal/detect"
	"objectwatch/internal/logging"
	"objectwatch/internal/timeutil"
)

const maxLineBytes = 1 << 20

// JSONLSource decodes one detect.Frame per line. Lines that fail to decode
// are logged and skipped; read errors end the stream.
type JSONLSource struct {
	scanner *bufio.Scanner
	line    int
	closer  io.Closer
}

// NewJSONLSource reads frames from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	s := &JSONLSource{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenJSONLSource opens a recorded frame file.
func OpenJSONLSource(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewJSONLSource(f), nil
}

// Next returns the next decodable frame or io.EOF.
func (s *JSONLSource) Next(ctx context.Context) (detect.Frame, error) {
	for s.scanner.Scan() {
		s.line++
		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var f detect.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			logging.FromContext(ctx).Warn("skipping undecodable frame", "line", s.line, "err", err)
			continue
		}
		return f, nil
	}
	if err := s.scanner.Err(); err != nil {
		return detect.Frame{}, fmt.Errorf("read frames at line %d: %w", s.line, err)
	}
	return detect.Frame{}, io.EOF
}

// Close closes the underlying reader when it is closable.
func (s *JSONLSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ReplaySource paces another source by the gaps between recorded frame
// timestamps. A speed > 1 accelerates playback; speed <= 0 disables pacing.
type ReplaySource struct {
	src   Source
	speed float64
	clock timeutil.Clock
	prev  time.Time
}

// NewReplaySource wraps src. A nil clock uses the real clock.
func NewReplaySource(src Source, speed float64, clock timeutil.Clock) *ReplaySource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ReplaySource{src: src, speed: speed, clock: clock}
}

func (r *ReplaySource) Next(ctx context.Context) (detect.Frame, error) {
	f, err := r.src.Next(ctx)
	if err != nil {
		return f, err
	}
	if !r.prev.IsZero() && !f.Timestamp.IsZero() && r.speed > 0 {
		diff := f.Timestamp.Sub(r.prev)
		if r.speed != 1 {
			diff = time.Duration(float64(diff) / r.speed)
		}
		if diff > 0 {
			r.clock.Sleep(diff)
		}
	}
	if !f.Timestamp.IsZero() {
		r.prev = f.Timestamp
	}
	return f, ctx.Err()
}

// FrameRecorder appends every frame to a JSONL file for later replay.
type FrameRecorder struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewFrameRecorder creates or truncates path.
func NewFrameRecorder(path string) (*FrameRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FrameRecorder{f: f, enc: json.NewEncoder(f)}, nil
}

func (r *FrameRecorder) WriteFrame(f detect.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(f)
}

func (r *FrameRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

// SliceSource yields a fixed list of frames, then io.EOF.
type SliceSource struct {
	frames []detect.Frame
	i      int
}

func NewSliceSource(frames ...detect.Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Next(ctx context.Context) (detect.Frame, error) {
	if err := ctx.Err(); err != nil {
		return detect.Frame{}, err
	}
	if s.i >= len(s.frames) {
		return detect.Frame{}, io.EOF
	}
	f := s.frames[s.i]
	s.i++
	return f, nil
}
