// Package adc provides the blocking analog sampler used by the control loop.
// The conversion hardware sits behind the Converter interface: the real
// implementation bit-bangs an MCP3008 on Linux, the fake replays scripted
// frames for tests.
package adc

import "errors"

// Channels is the number of channels converted per pass.
const Channels = 8

// Frame is one complete set of raw channel readings.
type Frame [Channels]uint16

// FrameOf builds a Frame from leading channel readings.
func FrameOf(readings ...uint16) Frame {
	var f Frame
	copy(f[:], readings)
	return f
}

var (
	// ErrBusy is returned when Sample is called while a conversion is in progress.
	ErrBusy = errors.New("adc: conversion already in progress")
	// ErrTimeout is returned when the converter does not report completion in time.
	ErrTimeout = errors.New("adc: conversion timed out")
)

// Converter is the analog conversion hardware.
type Converter interface {
	// Start begins one conversion pass over channels. done is called exactly
	// once, possibly from another goroutine, with the fully populated frame.
	Start(channels []int, done func(Frame, error)) error

	// Close releases converter resources.
	Close() error
}
