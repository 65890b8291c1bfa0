// Package errs holds sentinel errors shared between storages and handlers.
package errs

import "errors"

var ErrMetricNotFound = errors.New("metric not found")
