// Command redeem handles one redeem request issue. It is meant to run from
// an issues workflow, which provides GITHUB_EVENT_PATH.
package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/codekeeper/internal/app"
	"github.com/dmitrijs2005/codekeeper/internal/buildinfo"
	"github.com/dmitrijs2005/codekeeper/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	buildinfo.PrintBuildData(os.Stderr)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Printf("config error: %v", err)
		return app.ExitConfig
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("config error: %v", err)
		return app.ExitConfig
	}

	ctx, cancel := app.WithSignals(context.Background())
	defer cancel()

	a, err := app.NewApp(ctx, cfg, os.Stderr)
	if err != nil {
		log.Printf("%v", err)
		return app.ExitCode(err)
	}
	defer a.Close()

	return a.RunRedeem(ctx)
}
