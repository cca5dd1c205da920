package midi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// ErrPortNotFound is returned when an address matches no live port
var ErrPortNotFound = errors.New("port not found")

// ErrScanTimeout is returned when the driver does not answer a port scan
var ErrScanTimeout = errors.New("port scan timed out")

// Output is an opened output endpoint
type Output interface {
	Send(msg gomidi.Message) error
	Close() error
	String() string
}

// Ports resolves endpoint addresses to live ports
type Ports interface {
	Outputs() ([]string, error)
	Inputs() ([]string, error)
	OpenOutput(address string) (Output, error)
	Listen(address string, recv func(msg gomidi.Message)) (stop func(), err error)
}

// System is the Ports implementation backed by the registered gomidi driver
type System struct {
	scanTimeout time.Duration
}

// NewSystem returns a System with the default scan timeout
func NewSystem() *System {
	return &System{scanTimeout: 3 * time.Second}
}

// Close releases the driver
func (s *System) Close() {
	gomidi.CloseDriver()
}

type portsResult struct {
	inPorts  []drivers.In
	outPorts []drivers.Out
}

// scan lists ports with a timeout (CoreMIDI can hang)
func (s *System) scan() (portsResult, error) {
	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{
			inPorts:  gomidi.GetInPorts(),
			outPorts: gomidi.GetOutPorts(),
		}
	}()

	select {
	case result := <-ch:
		return result, nil
	case <-time.After(s.scanTimeout):
		return portsResult{}, ErrScanTimeout
	}
}

func (s *System) Outputs() ([]string, error) {
	r, err := s.scan()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(r.outPorts))
	for i, out := range r.outPorts {
		names[i] = out.String()
	}
	return names, nil
}

func (s *System) Inputs() ([]string, error) {
	r, err := s.scan()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(r.inPorts))
	for i, in := range r.inPorts {
		names[i] = in.String()
	}
	return names, nil
}

type output struct {
	port drivers.Out
	send func(msg gomidi.Message) error
}

func (o *output) Send(msg gomidi.Message) error { return o.send(msg) }
func (o *output) Close() error                  { return o.port.Close() }
func (o *output) String() string                { return o.port.String() }

func (s *System) OpenOutput(address string) (Output, error) {
	r, err := s.scan()
	if err != nil {
		return nil, err
	}
	for _, port := range r.outPorts {
		if !MatchPort(port.String(), port.Number(), address) {
			continue
		}
		send, err := gomidi.SendTo(port)
		if err != nil {
			return nil, fmt.Errorf("open output %q: %w", port.String(), err)
		}
		return &output{port: port, send: send}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, address)
}

func (s *System) Listen(address string, recv func(msg gomidi.Message)) (func(), error) {
	r, err := s.scan()
	if err != nil {
		return nil, err
	}
	for _, port := range r.inPorts {
		if !MatchPort(port.String(), port.Number(), address) {
			continue
		}
		stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, timestampms int32) {
			recv(msg)
		}, gomidi.UseSysEx())
		if err != nil {
			return nil, fmt.Errorf("open input %q: %w", port.String(), err)
		}
		return stop, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, address)
}

// MatchPort reports whether a port answers to address. An address is the
// exact port name, the port number, or a case-insensitive name fragment.
func MatchPort(name string, number int, address string) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return false
	}
	if name == address {
		return true
	}
	if n, err := strconv.Atoi(address); err == nil {
		return n == number
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(address))
}
