package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/rumsystem/nft-bbs-sub001/chain"
	"github.com/rumsystem/nft-bbs-sub001/config"
	"github.com/rumsystem/nft-bbs-sub001/db"
	"github.com/rumsystem/nft-bbs-sub001/models"
	"github.com/rumsystem/nft-bbs-sub001/pollster"
	"github.com/rumsystem/nft-bbs-sub001/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the bulletin board",
		Description: `Starts the polling scheduler, the HTTP read API and the SSE push
channel.

The scheduler polls every configured group feed from its persisted cursor and
projects records into the SQLite database. Committed events are pushed to
connected clients; disconnected clients re-fetch state via the read API.`,
		Flags: append(commonFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "Port to listen on",
				EnvVars: []string{"NFTBBS_PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Usage:   "Allowed CORS origins for the web client",
				EnvVars: []string{"NFTBBS_CORS_ORIGINS"},
			},
		),
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")

			// Make sure the schema is current before anything touches it
			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			store, reader, p, wake, err := setupIngestion(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			defer reader.Close()

			broadcaster := server.NewBroadcaster()
			p.SetFanout(broadcaster)

			app := server.Server(&server.ServerConfig{
				Reader:       reader,
				Store:        store,
				Broadcaster:  broadcaster,
				AllowOrigins: ctx.String("cors-origins"),
			})

			runCtx, cancel := context.WithCancel(ctx.Context)
			defer cancel()

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			go func() {
				<-c
				fmt.Println("Gracefully shutting down...")
				cancel()
				app.ShutdownWithTimeout(60 * time.Second)
				broadcaster.Shutdown()
			}()

			if wake != nil {
				go wake.Run(runCtx)
			}

			go func() {
				log.Info("Starting polling scheduler...")
				if err := p.Run(runCtx); err != nil && err != context.Canceled {
					log.Error("Polling scheduler stopped", err)
				}
			}()

			fmt.Println("Starting server...")
			if err := app.Listen(fmt.Sprintf(":%d", ctx.Int("port"))); err != nil {
				return err
			}

			fmt.Println("Done!")
			return nil
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database",
			Aliases: []string{"d"},
			Value:   "bbs.db",
			Usage:   "SQLite database file location",
			EnvVars: []string{"NFTBBS_DATABASE"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "config/groups.toml",
			Usage:   "Path to groups configuration file",
			EnvVars: []string{"NFTBBS_CONFIG"},
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Value:   2 * time.Second,
			Usage:   "Base interval between poll iterations",
			EnvVars: []string{"NFTBBS_POLL_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "batch-size",
			Value:   100,
			Usage:   "Maximum records fetched per feed per iteration",
			EnvVars: []string{"NFTBBS_BATCH_SIZE"},
		},
	}
}

// setupIngestion wires the scheduler from configuration: chain client,
// projection store, tracked groups and the optional wake socket.
func setupIngestion(ctx *cli.Context) (*db.Store, *db.Reader, *pollster.Pollster, *chain.WakeListener, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	database := ctx.String("database")
	store, err := db.NewStore(database)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	reader := db.NewReader(database)

	groups := make([]models.Group, 0, len(cfg.Groups))
	for _, g := range cfg.Groups {
		group := models.Group{
			ID:              g.ID,
			Name:            g.Name,
			MainEndpoint:    g.MainEndpoint,
			CommentEndpoint: g.CommentEndpoint,
			CounterEndpoint: g.CounterEndpoint,
			ProfileEndpoint: g.ProfileEndpoint,
		}
		if err := store.UpsertGroup(group); err != nil {
			store.Close()
			return nil, nil, nil, nil, err
		}
		groups = append(groups, group)
	}

	client, err := chain.NewClient(chain.ClientConfig{
		APIBase:   cfg.Node.APIBase,
		Compress:  cfg.Node.Compress,
		UserAgent: "nft-bbs-sub001",
	})
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, err
	}

	p := pollster.New(client, store, pollster.NoopFanout{}, groups, pollster.Config{
		Interval:  ctx.Duration("poll-interval"),
		BatchSize: ctx.Int("batch-size"),
	})

	var wake *chain.WakeListener
	if cfg.Node.WakeSocket != "" {
		wake = chain.NewWakeListener(cfg.Node.WakeSocket, "nft-bbs-sub001")
		p.SetWakeChannel(wake.Wake())
	}

	return store, reader, p, wake, nil
}
