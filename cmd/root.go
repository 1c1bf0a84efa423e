package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "nft-bbs",
		Usage: "A bulletin board projection service for chain-log groups",
		Description: `Ingests the append-only content logs of decentralized groups and
		projects them into queryable relational state: posts, comments,
		profiles, reactions, images and notifications.

		The service polls each group's feed endpoints from a persisted
		cursor, applies records idempotently in log order, and pushes
		committed events to connected clients over SSE.

		Flags can generally be set via environment variables, e.g.:

		--database => NFTBBS_DATABASE=bbs.db
		--port => NFTBBS_PORT=8080
		`,
		Commands: []*cli.Command{
			serveCmd(),
			pollCmd(),
			migrateCmd(),
			rollbackCmd(),
			initCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
