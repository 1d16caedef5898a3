// Command catchlog is the command-line front end to the fishing catch log.
package main

import "github.com/mesh-intelligence/catchlog/internal/cli"

func main() {
	cli.Execute()
}
