package domain

import "errors"

// ErrProjectNotFound is returned when a project ID cannot be found in the store.
var ErrProjectNotFound = errors.New("project not found")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrDatasetNotFound is returned when a dataset ID cannot be found in the store.
var ErrDatasetNotFound = errors.New("dataset not found")

// ErrDataSourceNotFound is returned when a data source ID cannot be found.
var ErrDataSourceNotFound = errors.New("data source not found")
