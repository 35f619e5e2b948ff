package domain

import "fmt"

// Sentinel errors for the domain layer.
var (
	ErrRegistryMalformed = fmt.Errorf("registry file malformed")

	// Pairing errors.
	ErrPairFailed        = fmt.Errorf("pairing failed")
	ErrDeviceUnavailable = fmt.Errorf("device not available")

	// Actuator errors.
	ErrActuatorWrite = fmt.Errorf("actuator write failed")
)
