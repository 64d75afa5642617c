// SPDX-License-Identifier: MPL-2.0

// Package serverbase runs a network server through a single-use lifecycle:
// listen, serve in the background, report asynchronous failures and shut
// down within a deadline. The SSH and websocket front ends embed Base and
// supply only their serve and shutdown functions.
package serverbase
