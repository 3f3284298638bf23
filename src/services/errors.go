package services

import "errors"

// ErrRunActive is returned when a simulation run is requested while one is
// already in progress. No state is mutated.
var ErrRunActive = errors.New("attack simulation already running")
