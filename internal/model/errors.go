package model

import "errors"

// ErrNotFound marks an absent row on read paths. Absence is a normal
// result for lookups; callers check with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrNoFreePorts is raised when the panel's bounded port pool is
// exhausted. It is fatal to the enclosing operation and never retried.
var ErrNoFreePorts = errors.New("no free ports in panel pool")
