//go:build edge

package actuator

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"proximityd/internal/domain"
)

// PeriphPWM drives an output pin with hardware PWM through periph.io.
// Levels scale linearly onto the duty cycle, with maxLevel mapping to
// fully on.
type PeriphPWM struct {
	pin      gpio.PinIO
	maxLevel int
}

// NewPeriphPWM initializes the periph.io host and resolves the pin.
func NewPeriphPWM(pin, maxLevel int) (*PeriphPWM, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %d (%s) not found in hardware", pin, name)
	}
	return &PeriphPWM{pin: p, maxLevel: maxLevel}, nil
}

// SetLevel converts the level to a duty cycle and applies it at 1kHz.
func (p *PeriphPWM) SetLevel(level int) error {
	if level < 0 {
		level = 0
	}
	if level > p.maxLevel {
		level = p.maxLevel
	}
	duty := gpio.Duty(float64(level) / float64(p.maxLevel) * float64(gpio.DutyMax))
	if err := p.pin.PWM(duty, 1000*physic.Hertz); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrActuatorWrite, p.pin.Name(), err)
	}
	return nil
}
