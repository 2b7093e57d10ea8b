// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import "context"

// Func is one step of the [*NetworkSource] connection pipeline.
//
// [NewNetworkSource] chains the endpoint, connect, observe, and cancel-watch
// steps with [Compose4]; each step receives what the previous one produced.
//
// A step that receives the connector socket and fails must close it.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter turns a function into a [Func].
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}
