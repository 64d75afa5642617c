// SPDX-License-Identifier: MPL-2.0

package main

import cmd "shkernel/cmd/shkernel"

func main() {
	cmd.Execute()
}
