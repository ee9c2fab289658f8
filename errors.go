package packetsock

import (
	"errors"
	"fmt"
)

// Errors returned by channel construction and operation.
var (
	// ErrInvalidMTU is returned when a directional MTU is negative or
	// exceeds MaxPayload.
	ErrInvalidMTU = errors.New("mtu out of range")
	// ErrInvalidFaultHandler is returned when no fault handler is provided.
	ErrInvalidFaultHandler = errors.New("invalid fault handler callback")
	// ErrPacketTooLarge is returned when a packet exceeds the channel MTU
	// for its direction.
	ErrPacketTooLarge = errors.New("packet exceeds channel mtu")
	// ErrFrameTooLarge is returned when a received frame declares a payload
	// length above MaxPayload. This is a protocol violation, not a short
	// read; decoding cannot continue past it.
	ErrFrameTooLarge = errors.New("frame length exceeds protocol maximum")
)

// ErrChannelClosed is returned when operating on a closed channel.
var ErrChannelClosed = errors.New("channel closed")

// Stage identifies the pipeline stage a fault originated from. The stage is
// diagnostic only: every fault is channel-fatal regardless of origin.
type Stage int

const (
	// StageSource is the receive-side transport (socket reads).
	StageSource Stage = iota + 1
	// StageSink is the send-side transport (socket writes).
	StageSink
	// StageDecoder is frame reassembly on the receive side.
	StageDecoder
)

func (s Stage) String() string {
	switch s {
	case StageSource:
		return "source"
	case StageSink:
		return "sink"
	case StageDecoder:
		return "decoder"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Fault is a channel-fatal error tagged with the stage that reported it.
type Fault struct {
	Stage Stage
	Err   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
