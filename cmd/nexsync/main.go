package main

import (
	"fmt"
	"os"

	"github.com/tim-schneider/nexsync/config"
	"github.com/tim-schneider/nexsync/internal/cli"
	gateway "github.com/tim-schneider/nexsync/internal/providers/server/http"
	"github.com/tim-schneider/nexsync/schema"
	"github.com/tim-schneider/nexsync/server"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	deps := cli.Dependencies{
		Registry:   schema.NewCatalog(),
		LoadConfig: config.Load,
		NewClient: func(cfg config.Server) (server.CollectionClient, error) {
			return gateway.NewGateway(cfg)
		},
		Version: version,
	}
	if stat, err := os.Stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
		deps.Confirm = cli.TerminalConfirm
	}

	if err := cli.Execute(deps); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.ExitCodeForError(err))
	}
}
