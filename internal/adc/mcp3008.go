//go:build linux

package adc

import (
	"fmt"
	"sync"

	"github.com/warthog618/gpio"
	"github.com/warthog618/gpio/spi/mcp3w0c"
)

// MCP3008 converts channels on an MCP3008 wired to four GPIO lines.
type MCP3008 struct {
	mu  sync.Mutex
	adc *mcp3w0c.MCP3w0c
}

// NewMCP3008 maps the GPIO block and prepares the converter.
func NewMCP3008(w Wiring) (*MCP3008, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	return &MCP3008{
		adc: mcp3w0c.NewMCP3008(w.Tclk, w.Clk, w.Csz, w.DI, w.DO),
	}, nil
}

// Start converts the channels on a separate goroutine and reports the frame
// once every channel has been read.
func (m *MCP3008) Start(channels []int, done func(Frame, error)) error {
	for _, ch := range channels {
		if ch < 0 || ch >= Channels {
			return fmt.Errorf("channel %d out of range", ch)
		}
	}
	go func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		var f Frame
		for _, ch := range channels {
			f[ch] = m.adc.Read(ch)
		}
		done(f, nil)
	}()
	return nil
}

// Close releases the converter lines and unmaps the GPIO block.
func (m *MCP3008) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adc.Close()
	return gpio.Close()
}
