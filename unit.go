// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

// Unit is the input of the connection pipeline, which starts from the
// configured [Endpoint] rather than from a caller-provided value.
type Unit struct{}
