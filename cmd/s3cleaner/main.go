package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/semmidev/s3cleaner/internal/app"
	"github.com/semmidev/s3cleaner/internal/config"
	"github.com/semmidev/s3cleaner/internal/domain"
)

func main() {
	cliApp := &cli.App{
		Name:  "s3cleaner",
		Usage: "list, delete and clean old objects in S3 buckets",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and the clean schedule",
				Flags: []cli.Flag{configFlag()},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return fmt.Errorf("load config: %w", err)
					}

					application, err := app.New(cfg)
					if err != nil {
						return fmt.Errorf("initialize app: %w", err)
					}
					defer application.Shutdown()

					ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
					defer cancel()

					return application.Run(ctx)
				},
			},
			{
				Name:  "clean",
				Usage: "clean one bucket now and exit",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "bucket",
						Aliases:  []string{"b"},
						Required: true,
						Usage:    "bucket to clean",
					},
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "only consider keys under this prefix",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return fmt.Errorf("load config: %w", err)
					}

					application, err := app.New(cfg)
					if err != nil {
						return fmt.Errorf("initialize app: %w", err)
					}
					defer application.Shutdown()

					result, err := application.Clean(context.WithoutCancel(c.Context), domain.CleanRequest{
						Bucket: c.String("bucket"),
						Prefix: c.String("prefix"),
					})
					if err != nil {
						return err
					}

					fmt.Printf("Cleaned %d objects from %s (scanned %d, matched %d, %d of %d batch(es) failed)\n",
						result.Deleted, result.Bucket, result.Scanned, result.Matched, result.FailedBatches, result.Batches)
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to config yaml (optional; defaults and S3CLEANER_* env apply)",
		EnvVars: []string{"S3CLEANER_CONFIG"},
	}
}
