package motor

import "github.com/pkg/errors"

// NewUnknownIDError returns an error for a motor ID a driver cannot address.
func NewUnknownIDError(id ID) error {
	return errors.Errorf("unknown motor id %d", int(id))
}

// NewUnknownDirectionError returns an error for a direction a driver cannot encode.
func NewUnknownDirectionError(dir Direction) error {
	return errors.Errorf("unknown motor direction %d", int(dir))
}
