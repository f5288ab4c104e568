package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/crosspost/internal/cli"
	"github.com/dmitrijs2005/crosspost/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	err = app.Run(ctx, os.Args[1:])
	if cerr := app.Close(); cerr != nil {
		log.Printf("close: %v", cerr)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

}
