package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/rumsystem/nft-bbs-sub001/db"
	"github.com/rumsystem/nft-bbs-sub001/models"
)

func pollCmd() *cli.Command {
	return &cli.Command{
		Name:  "poll",
		Usage: "Run the ingestion pipeline and log committed events",
		Description: `Runs only the polling scheduler, without the HTTP server, and
prints every committed event as a JSON object on a single line. Use a tool
like jq to process the output.

Can be used to collect a group's activity by passing the output to a file
or another application.

Prints all other log messages to stderr.`,
		Flags: commonFlags(),
		Action: func(ctx *cli.Context) error {
			// Keep stdout clean for the event stream
			log.SetOutput(os.Stderr)

			if err := db.Migrate(ctx.String("database")); err != nil {
				return err
			}

			store, reader, p, wake, err := setupIngestion(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			defer reader.Close()

			p.SetFanout(printFanout{})

			if wake != nil {
				go wake.Run(ctx.Context)
			}

			log.Info("Starting polling scheduler...")
			return p.Run(ctx.Context)
		},
	}
}

// printFanout writes each committed event as a single JSON line on stdout.
type printFanout struct{}

func (printFanout) Publish(groupID string, events []models.Event) {
	for _, event := range events {
		line, err := json.Marshal(map[string]any{
			"group": groupID,
			"event": event.EventName(),
			"data":  event,
		})
		if err == nil {
			fmt.Println(string(line))
		}
	}
}
