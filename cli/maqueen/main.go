// Package main is the maqueen command itself.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/mpoelzl/pxt-easymaqueenplusv2/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
