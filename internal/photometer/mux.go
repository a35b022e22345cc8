// Package photometer provides an abstraction over a serial photometer
// with the ability for multiple clients to subscribe to reading lines
// from the device and send commands to it.
package photometer

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var ErrWriteFailed = errors.New("failed to write to photometer port")

// Mux is a serial photometer multiplexer: one device, many subscribers.
// Readings stream continuously once the device is in continuous
// measurement mode; each subscriber gets its own line channel.
type Mux[T Porter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// Muxer defines the photometer mux surface consumed by the session and
// API layers.
type Muxer interface {
	// Subscribe creates a new channel receiving reading lines from the
	// photometer. The returned ID identifies the channel when
	// unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided command to the photometer.
	SendCommand(string) error
	// Monitor reads lines from the port and fans them out to
	// subscribers until the context is cancelled or the port fails.
	Monitor(context.Context) error
	// Initialize puts the device into the output mode the parser
	// expects.
	Initialize() error
	// Close closes all subscriber channels and the port.
	Close() error
}

// NewMux creates a Mux backed by the given port.
func NewMux[T Porter](port T) *Mux[T] {
	return &Mux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// subscriberBuffer absorbs short bursts of readings so a subscriber
// that is between receives does not lose lines to the non-blocking
// fanout.
const subscriberBuffer = 16

func (m *Mux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

func (m *Mux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// portReadTimeout bounds each blocking read on ports that support
// timeouts, so a silent or unplugged device cannot wedge the monitor
// loop indefinitely.
const portReadTimeout = 2 * time.Second

// Initialize sets the device output modes the reading parser depends on:
// candela units, CSV output, and continuous measurement. Ports that
// support read timeouts get one applied first.
func (m *Mux[T]) Initialize() error {
	if tp, ok := any(m.port).(TimeoutPorter); ok {
		if err := tp.SetReadTimeout(portReadTimeout); err != nil {
			return fmt.Errorf("failed to set read timeout: %w", err)
		}
	}
	for _, command := range []string{
		"UC", // report luminance in cd/m^2
		"OV", // CSV output: LUM,<value> per reading
		"I2", // medium integration window
		"MC", // continuous measurement mode
	} {
		if err := m.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send setup command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand sends a command line to the photometer.
func (m *Mux[T]) SendCommand(command string) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := m.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads reading lines from the port and fans them out to
// subscribers. Slow subscribers are skipped rather than blocking the
// read loop.
func (m *Mux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so the outer loop
	// can still observe context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}

			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return nil
			}
			m.closingMu.Unlock()

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
					// Skip full channels so one stalled reader cannot
					// stall the device loop.
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

func (m *Mux[T]) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return m.port.Close()
}
