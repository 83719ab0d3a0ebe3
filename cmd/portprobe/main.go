// Command portprobe checks which TCP ports on a host accept connections.
package main

import (
	"github.com/anstrom/portprobe/cmd/cli"
)

// Build information, set via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse --short HEAD)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
