package main

import (
	"github.com/larsks/npsctl/internal/cli"
	"github.com/larsks/npsctl/internal/simulator"
)

func main() {
	cli.StandardMain(
		func() cli.Configurable { return simulator.NewConfig() },
		simulator.NewHandler(),
	)
}
