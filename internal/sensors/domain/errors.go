package sensors

import "errors"

var (
	// ErrUnknownSensor is returned when an override names a sensor that is not registered.
	ErrUnknownSensor = errors.New("sensors: unknown sensor")
	// ErrInvalidOverrideValue is returned for non-numeric or non-finite override values.
	ErrInvalidOverrideValue = errors.New("sensors: invalid override value")
	// ErrBoardNotReady is returned when the board is used before initialization.
	ErrBoardNotReady = errors.New("sensors: board not ready")
	// ErrInvalidForceState is returned when a force command carries an unknown panel state.
	ErrInvalidForceState = errors.New("sensors: invalid force state")
	// ErrInvalidConfig is returned when a sensor configuration breaks its band invariants.
	ErrInvalidConfig = errors.New("sensors: invalid config")
)
