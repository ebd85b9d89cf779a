package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/zhe.chen/landmark-story/internal/cache"
	"github.com/zhe.chen/landmark-story/internal/client"
	"github.com/zhe.chen/landmark-story/internal/landmarks"
	"github.com/zhe.chen/landmark-story/internal/storage"
	"github.com/zhe.chen/landmark-story/internal/tts"
	"github.com/zhe.chen/landmark-story/internal/video"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

// newCacheStore opens the configured video cache backend
func newCacheStore(ctx context.Context, config types.CacheConfig) (cache.Store, error) {
	switch config.Backend {
	case "", "memory":
		return cache.NewMemoryStore(), nil

	case "file":
		return cache.NewFileStore(config.Path), nil

	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		log.Info().Str("table", config.Table).Str("region", awsCfg.Region).Msg("Using DynamoDB video cache")
		return cache.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), config.Table), nil

	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", config.Backend)
	}
}

// newUploader returns nil when no bucket is configured
func newUploader(ctx context.Context, config types.StorageConfig) (storage.Uploader, error) {
	if config.S3Bucket == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Info().Str("bucket", config.S3Bucket).Str("prefix", config.S3Prefix).Msg("Uploading final videos to S3")
	return storage.NewS3Uploader(s3.NewFromConfig(awsCfg), config.S3Bucket, config.S3Prefix, config.PresignExpiry), nil
}

// newVideoGenerator connects the configured text-to-video backend. The
// returned close function releases the MCP session, if any.
func newVideoGenerator(ctx context.Context, config types.VideoConfig) (video.Generator, func(), error) {
	switch config.Backend {
	case "mcp":
		log.Info().Str("tool", config.MCP.Tool).Msg("Connecting to video MCP server...")
		mcpClient, err := client.CreateClient(config.MCP)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create MCP client: %w", err)
		}
		if err := mcpClient.Open(ctx, config.MCP.Tool); err != nil {
			mcpClient.Close()
			return nil, nil, fmt.Errorf("failed to open MCP session: %w", err)
		}
		name, version := mcpClient.ServerInfo()
		log.Info().Str("server", name).Str("version", version).Msg("Connected to video server")
		return video.NewMCPGenerator(mcpClient, config.MCP.Tool, config.Timeout), func() { mcpClient.Close() }, nil

	case "", "http":
		return video.NewHTTPGenerator(config.BaseURL, config.APIKey, config.Timeout), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported video backend: %s", config.Backend)
	}
}

func newSynthesizer(config types.TTSConfig) tts.Synthesizer {
	return tts.NewEdgeTTS(config.Command,
		tts.WithRetries(config.Retries),
		tts.WithTimeout(config.Timeout),
	)
}

func loadLandmarks(config types.LandmarksConfig) (landmarks.Store, error) {
	store, err := landmarks.LoadFile(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load landmarks: %w", err)
	}
	return store, nil
}
