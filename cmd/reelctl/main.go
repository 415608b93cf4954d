// Command reelctl is a terminal client for the reelshare API.
package main

import "reelshare/internal/cli"

func main() {
	cli.Execute()
}
