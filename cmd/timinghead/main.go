package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	fx "github.com/robotalks/laptimer/pkg/framework"
	"github.com/robotalks/laptimer/pkg/head"
)

func init() {
	head.SetupFlags()
}

func main() {
	flag.Parse()

	h := head.NewConfig().MustNewHead()
	loop := fx.NewLoop()
	loop.Clock = h.Clock
	loop.Add(h)

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("loop", loop))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
