// SPDX-License-Identifier: MIT
package main

import "github.com/skaphos/notesync/cmd/notesync"

// execute is overridable in tests.
var execute = notesync.Execute

func main() {
	execute()
}
