package main

import (
	"log/slog"
	"os"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "chat moderation decision daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/warden/chatguard.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis URL for the violation log and reputation cache; empty means in-process memory",
			EnvVars: []string{"WARDEN_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "classifier-host",
			Usage:   "base URL of the upstream classifier service",
			Value:   "http://localhost:8500",
			EnvVars: []string{"WARDEN_CLASSIFIER_HOST"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3300",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3301",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "incoming webhook for severe decision notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.IntFlag{
			Name:    "classifier-rate-limit",
			Usage:   "max requests per second to the upstream classifier",
			Value:   20,
			EnvVars: []string{"WARDEN_CLASSIFIER_RATE_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "decay-interval",
			Usage:   "how often the reputation decay pass runs",
			EnvVars: []string{"WARDEN_DECAY_INTERVAL"},
		},
		&cli.StringSliceFlag{
			Name:    "seed-scopes",
			Usage:   "scopes to install the default policy set for at startup",
			EnvVars: []string{"WARDEN_SEED_SCOPES"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		srv, err := NewServer(Config{
			DatabaseURL:         cctx.String("database-url"),
			MaxDBConnections:    cctx.Int("max-db-connections"),
			RedisURL:            cctx.String("redis-url"),
			ClassifierHost:      cctx.String("classifier-host"),
			ClassifierRateLimit: cctx.Int("classifier-rate-limit"),
			SlackWebhookURL:     cctx.String("slack-webhook-url"),
			DecayInterval:       cctx.Duration("decay-interval"),
			Logger:              logger,
		})
		if err != nil {
			return err
		}

		if err := srv.SeedPolicies(cctx.Context, cctx.StringSlice("seed-scopes")); err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(err)
			}
		}()

		return srv.Run(cctx.Context, cctx.String("bind"))
	},
}
