package adc

import "time"

// Wiring describes how the MCP3008 is connected (BCM numbering).
type Wiring struct {
	Tclk time.Duration // half clock period
	Clk  int
	Csz  int
	DI   int
	DO   int
}

// DefaultWiring matches the usual Pi breakout for the MCP3008.
var DefaultWiring = Wiring{
	Tclk: 500 * time.Nanosecond,
	Clk:  21,
	Csz:  6,
	DI:   19,
	DO:   26,
}
