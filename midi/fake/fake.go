// Package fake provides an in-memory midi.Ports for tests and dry runs.
package fake

import (
	"errors"
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-metronome/midi"
)

// ErrSendFailed is what a failing output returns from Send
var ErrSendFailed = errors.New("fake: send failed")

// Ports records everything sent to its outputs
type Ports struct {
	mu        sync.Mutex
	outputs   []string
	inputs    []string
	sent      []gomidi.Message
	listeners map[string]func(gomidi.Message)
	failAfter int // sends before failing; <0 never fails
	opened    int
	closed    int
}

// New creates fake ports with the given output and input names
func New(outputs, inputs []string) *Ports {
	return &Ports{
		outputs:   outputs,
		inputs:    inputs,
		listeners: make(map[string]func(gomidi.Message)),
		failAfter: -1,
	}
}

// FailAfter makes Send fail once n more messages have been sent
func (p *Ports) FailAfter(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failAfter = n
}

// SetOutputs replaces the output list (simulates hot-plug)
func (p *Ports) SetOutputs(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputs = names
}

// Sent returns a copy of every message sent so far
func (p *Ports) Sent() []gomidi.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]gomidi.Message, len(p.sent))
	copy(out, p.sent)
	return out
}

// Reset forgets sent messages
func (p *Ports) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}

// Opened returns how many outputs were opened and closed
func (p *Ports) Opened() (opened, closed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened, p.closed
}

// Inject delivers msg to the listener on address, as if it came from a device
func (p *Ports) Inject(address string, msg gomidi.Message) {
	p.mu.Lock()
	recv := p.listeners[address]
	p.mu.Unlock()
	if recv != nil {
		recv(msg)
	}
}

func (p *Ports) Outputs() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.outputs...), nil
}

func (p *Ports) Inputs() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.inputs...), nil
}

func (p *Ports) OpenOutput(address string) (midi.Output, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, name := range p.outputs {
		if midi.MatchPort(name, i, address) {
			p.opened++
			return &output{ports: p, name: name}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", midi.ErrPortNotFound, address)
}

func (p *Ports) Listen(address string, recv func(gomidi.Message)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, name := range p.inputs {
		if midi.MatchPort(name, i, address) {
			p.listeners[address] = recv
			return func() {
				p.mu.Lock()
				delete(p.listeners, address)
				p.mu.Unlock()
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", midi.ErrPortNotFound, address)
}

type output struct {
	ports *Ports
	name  string
}

func (o *output) Send(msg gomidi.Message) error {
	p := o.ports
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAfter == 0 {
		return ErrSendFailed
	}
	if p.failAfter > 0 {
		p.failAfter--
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (o *output) Close() error {
	o.ports.mu.Lock()
	o.ports.closed++
	o.ports.mu.Unlock()
	return nil
}

func (o *output) String() string { return o.name }
