package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"needsmatch/internal/db"
	"needsmatch/internal/export"
	"needsmatch/internal/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var exportFundingCommand = &cli.Command{
	Name:  "export-funding",
	Usage: "Write every funding record to CSV and upload it to S3",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "bucket",
			Usage: "Destination bucket, defaults to EXPORT_BUCKET_NAME",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "Write the CSV to this local file instead of uploading",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := store.NewFundingRepository(pool).AllFunding(ctx)
		if err != nil {
			return err
		}

		if out := c.String("out"); out != "" {
			data, err := export.WriteCSV(entries)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			logrus.WithField("path", out).WithField("records", len(entries)).Info("funding exported")
			return nil
		}

		bucket := c.String("bucket")
		if bucket == "" {
			bucket = cfg.ExportBucketName
		}
		if bucket == "" {
			return fmt.Errorf("set EXPORT_BUCKET_NAME or pass --bucket")
		}

		awsConfig, err := loadAWSConfig(ctx)
		if err != nil {
			return err
		}

		exporter := export.NewFundingExporter(s3.NewFromConfig(awsConfig), bucket)
		key, err := exporter.Export(ctx, entries, time.Now())
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"bucket":  bucket,
			"key":     key,
			"records": len(entries),
		}).Info("funding exported")
		return nil
	},
}
