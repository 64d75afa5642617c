// SPDX-License-Identifier: MPL-2.0

// Package wsserver exposes kernels to programs over a websocket.
//
// Each connection owns one kernel. Clients send JSON request messages and
// receive one reply per request, in order. Replies to execute requests carry
// the standard output and error the submission produced.
package wsserver
