package main

import (
	"github.com/evanhutnik/geocode-proxy/internal/cli"
)

var Version = "development"

func main() {
	cli.Execute(Version)
}
