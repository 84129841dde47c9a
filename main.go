// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/ethos-cli/ethos/cmd/ethos"

func main() {
	cmd.Execute()
}
