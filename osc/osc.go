// Package osc exposes transport control over Open Sound Control, for
// hardware controllers and live-coding environments.
package osc

import (
	"context"
	"errors"
	"fmt"
	"net"

	gosc "github.com/hypebeast/go-osc/osc"

	"go-metronome/debug"
	"go-metronome/sequencer"
)

// Address prefix of every method
const Prefix = "/metronome"

// Transport is the part of the engine driven over OSC
type Transport interface {
	Start() error
	Stop()
	Continue() error
	SetTempo(bpm int)
	SetTimeSignature(numerator, denominator int) error
}

// Server dispatches OSC messages to a Transport
type Server struct {
	engine     Transport
	dispatcher *gosc.StandardDispatcher
	handlers   map[string]func(*gosc.Message) error
}

// New registers the metronome methods:
//
//	/metronome/play
//	/metronome/stop
//	/metronome/cont
//	/metronome/tempo     bpm
//	/metronome/timesig   numerator denominator
func New(engine Transport) (*Server, error) {
	s := &Server{engine: engine, dispatcher: gosc.NewStandardDispatcher()}
	s.handlers = map[string]func(*gosc.Message) error{
		Prefix + "/play":    s.play,
		Prefix + "/stop":    s.stop,
		Prefix + "/cont":    s.cont,
		Prefix + "/tempo":   s.tempo,
		Prefix + "/timesig": s.timeSignature,
	}
	for addr, h := range s.handlers {
		err := s.dispatcher.AddMsgHandler(addr, func(msg *gosc.Message) {
			if err := h(msg); err != nil {
				debug.Warn("osc", "%s: %v", addr, err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", addr, err)
		}
	}
	return s, nil
}

// ListenAndServe reads UDP packets on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("osc listen: %w", err)
	}
	return s.Serve(ctx, conn)
}

// Serve reads packets from conn until ctx is cancelled, then closes conn
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) error {
	srv := &gosc.Server{Dispatcher: s.dispatcher}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	debug.Log("osc", "listening on %s", conn.LocalAddr())

	err := srv.Serve(conn)
	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Handle runs the method matching msg's address
func (s *Server) Handle(msg *gosc.Message) error {
	h, ok := s.handlers[msg.Address]
	if !ok {
		return fmt.Errorf("unknown address %q", msg.Address)
	}
	return h(msg)
}

func (s *Server) play(*gosc.Message) error {
	return s.engine.Start()
}

func (s *Server) stop(*gosc.Message) error {
	s.engine.Stop()
	return nil
}

func (s *Server) cont(*gosc.Message) error {
	return s.engine.Continue()
}

func (s *Server) tempo(msg *gosc.Message) error {
	bpm, err := intArg(msg, 0)
	if err != nil {
		return err
	}
	s.engine.SetTempo(bpm)
	return nil
}

func (s *Server) timeSignature(msg *gosc.Message) error {
	num, err := intArg(msg, 0)
	if err != nil {
		return err
	}
	den, err := intArg(msg, 1)
	if err != nil {
		return err
	}
	return s.engine.SetTimeSignature(num, den)
}

// intArg accepts int32, int64, float32 and float64 arguments
func intArg(msg *gosc.Message, i int) (int, error) {
	if i >= len(msg.Arguments) {
		return 0, fmt.Errorf("%w: %s needs argument %d", sequencer.ErrInvalidConfiguration, msg.Address, i+1)
	}
	switch v := msg.Arguments[i].(type) {
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float32:
		return int(v + 0.5), nil
	case float64:
		return int(v + 0.5), nil
	}
	return 0, fmt.Errorf("%w: %s argument %d is %T", sequencer.ErrInvalidConfiguration, msg.Address, i+1, msg.Arguments[i])
}
