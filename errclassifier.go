// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import "github.com/bassosimone/errclass"

// ErrClassifier labels connector socket errors for the errClass attribute
// of connectDone, readDone, writeDone, and closeDone events.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc is a function usable as [Config.ErrClassifier].
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier maps errors to [errclass] labels, such as
// "ETIMEDOUT" when the connector does not answer in time.
// A nil error has an empty label.
var DefaultErrClassifier = ErrClassifierFunc(errclass.New)
