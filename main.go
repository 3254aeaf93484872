// SPDX-License-Identifier: MPL-2.0

package main

import cmd "forgeenv-cli/cmd/forgeenv"

func main() {
	cmd.Execute()
}
