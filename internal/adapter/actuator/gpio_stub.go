//go:build !edge

package actuator

import "errors"

// PeriphPWM is unavailable without hardware support compiled in.
type PeriphPWM struct{}

// NewPeriphPWM fails in non-edge builds.
func NewPeriphPWM(_, _ int) (*PeriphPWM, error) {
	return nil, errors.New("gpio actuator requires an edge build")
}

func (p *PeriphPWM) SetLevel(_ int) error {
	return errors.New("gpio actuator requires an edge build")
}
