package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/mindnote/internal/client/cli"
	"github.com/dmitrijs2005/mindnote/internal/client/config"
)

func main() {

	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.LoadConfig()
	app, cleanup, err := cli.Setup(ctx, cfg)

	if err != nil {
		cancel()
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)
	cancel()
	cleanup()

}
