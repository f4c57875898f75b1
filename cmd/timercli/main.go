package main

import (
	"github.com/robotalks/laptimer/pkg/cli/sh"

	_ "github.com/robotalks/laptimer/pkg/cli/cmds/timer"
)

//go-build: CGO_ENABLED=0

func main() {
	sh.Main()
}
