package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"attire-api/internal/config"
	"attire-api/internal/mailer"
	"attire-api/internal/storage"
)

func buildTransport(ctx context.Context, cfg config.Config, logger *logrus.Logger) (mailer.Transport, error) {
	switch cfg.Mail.Transport {
	case "s3":
		store, err := buildStorage(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := store.CheckBucket(ctx); err != nil {
			logger.Warnf("mail outbox bucket not reachable yet: %v", err)
		}
		return mailer.NewS3Transport(store, cfg.Storage.KeyPrefix), nil
	default:
		logger.Info("mail transport: log only")
		return mailer.LogTransport{Logger: logger}, nil
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	store, err := storage.NewS3Service(client, cfg.Storage.Bucket)
	if err != nil {
		return nil, err
	}
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return store, nil
}

func newOutboxCommand(logger *logrus.Logger, timeout *time.Duration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the S3 mail outbox",
	}

	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, store storage.Service, prefix string) error) error {
		cfg, err := loadConfig(logger)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
		defer cancel()
		store, err := buildStorage(ctx, cfg, logger)
		if err != nil {
			return err
		}
		return fn(ctx, store, cfg.Storage.KeyPrefix)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List queued messages",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, store storage.Service, prefix string) error {
					objects, err := store.ListObjects(ctx, prefix)
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					for _, obj := range objects {
						modified := ""
						if obj.LastModified != nil {
							modified = obj.LastModified.Format(time.RFC3339)
						}
						fmt.Fprintf(out, "%s\t%d\t%s\n", obj.Key, obj.Size, modified)
					}
					fmt.Fprintf(out, "%d message(s)\n", len(objects))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "purge",
			Short: "Delete every queued message",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, store storage.Service, prefix string) error {
					if err := store.DeletePrefix(ctx, prefix); err != nil {
						return err
					}
					logger.Infof("outbox %s purged", prefix)
					return nil
				})
			},
		},
	)
	return cmd
}
