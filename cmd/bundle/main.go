package main

import (
	"io"
	"os"

	"github.com/convox/bundle/pkg/cli"
	"github.com/convox/logger"
)

var (
	version = "dev"
)

func main() {
	logger.Output = io.Discard

	if os.Getenv("BUNDLE_DEBUG") == "true" {
		logger.Output = os.Stderr
	}

	c := cli.New("bundle", version)

	os.Exit(c.Execute(os.Args[1:]))
}
