package photometer

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
)

// MockPort simulates a photometer pointed at a display with a power-law
// response. It doubles as the display driver in dev mode: SetLevel moves
// the simulated gun value, and each M1 command answers with the
// luminance the modelled display would emit at that level.
type MockPort struct {
	mu     sync.Mutex
	level  int
	reads  int
	closed bool

	pr *io.PipeReader
	pw *io.PipeWriter

	// Display model: Luminance = Floor + Peak * (level/255)^Gamma.
	Gamma float64
	Peak  float64
	Floor float64

	// FailEvery > 0 makes every Nth measurement answer ERR,02 to
	// exercise missing-sample handling. Zero disables failures.
	FailEvery int
}

// NewMockPort creates a simulated photometer with a CRT-like display
// model behind it.
func NewMockPort() *MockPort {
	pr, pw := io.Pipe()
	return &MockPort{
		pr:    pr,
		pw:    pw,
		Gamma: 2.2,
		Peak:  120,
		Floor: 0.1,
	}
}

// SetLevel updates the gun value the simulated display is showing. It
// satisfies the session's display driver interface.
func (p *MockPort) SetLevel(level int) error {
	if level < 0 || level > 255 {
		return fmt.Errorf("gun value %d out of range", level)
	}
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
	return nil
}

func (p *MockPort) Read(buf []byte) (int, error) {
	return p.pr.Read(buf)
}

// Write parses incoming command lines. Measurement commands produce a
// reading line on the read side; everything else is acknowledged
// silently, as the real device does in CSV mode.
func (p *MockPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	var responses []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.TrimSpace(line) != "M1" {
			continue
		}
		p.reads++
		if p.FailEvery > 0 && p.reads%p.FailEvery == 0 {
			responses = append(responses, "ERR,02\n")
			continue
		}
		lum := p.Floor + p.Peak*powLevel(p.level, p.Gamma)
		responses = append(responses, fmt.Sprintf("LUM,%.4f\n", lum))
	}
	p.mu.Unlock()

	// Pipe writes block until the reader side picks them up, so respond
	// outside the lock.
	go func() {
		for _, r := range responses {
			if _, err := p.pw.Write([]byte(r)); err != nil {
				return
			}
		}
	}()
	return len(data), nil
}

func (p *MockPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.pw.Close()
	return p.pr.Close()
}

func powLevel(level int, gamma float64) float64 {
	return math.Pow(float64(level)/255.0, gamma)
}

// NewMockMux creates a Mux backed by a simulated photometer.
func NewMockMux() (*Mux[*MockPort], *MockPort) {
	port := NewMockPort()
	return NewMux(port), port
}
