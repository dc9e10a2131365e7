// Command shareflow runs ShareFlow's peer service: LAN discovery, the
// session protocol, input capture/replay, and the local control bus.
package main

import "github.com/shareflow/shareflow/cmd/shareflow/cli"

func main() {
	cli.Execute()
}
