package cmd

import (
	"context"
	"fmt"

	"github.com/pithecene-io/skelcap/adapter"
	"github.com/pithecene-io/skelcap/adapter/redis"
	"github.com/pithecene-io/skelcap/adapter/webhook"
	"github.com/pithecene-io/skelcap/control"
	"github.com/pithecene-io/skelcap/export"
	"github.com/pithecene-io/skelcap/export/fbx"
	"github.com/pithecene-io/skelcap/export/gltf"
	"github.com/pithecene-io/skelcap/lode"
	"github.com/pithecene-io/skelcap/log"
)

// buildDispatcher registers the FBX and glTF back ends.
func buildDispatcher(floor bool, floorHalfExtent, gltfScale float64) *export.Dispatcher {
	return export.NewDispatcher(
		fbx.New(fbx.Options{Floor: floor, FloorHalfExtent: floorHalfExtent}),
		gltf.New(gltf.Options{Scale: gltfScale}),
	)
}

// buildArchive opens the configured archive. Returns nil when archiving
// is disabled.
func buildArchive(ctx context.Context, choice archiveChoice) (*lode.Archive, error) {
	if err := choice.validate(); err != nil {
		return nil, err
	}
	switch choice.backend {
	case "":
		return nil, nil
	case "fs":
		return lode.NewFSArchive(choice.path, choice.dataset)
	default:
		bucket, prefix := lode.ParseS3Path(choice.path)
		return lode.NewS3Archive(ctx, lode.S3Config{
			Dataset:      choice.dataset,
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       choice.region,
			Endpoint:     choice.endpoint,
			UsePathStyle: choice.s3PathStyle,
		})
	}
}

// buildAdapter creates the session-completed publisher.
func buildAdapter(choice *adapterChoice) (adapter.Adapter, error) {
	switch choice.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", choice.adapterType)
	}
}

// buildTransport creates the control transport. Returns nil for "none".
func buildTransport(choice controlChoice, logger *log.Logger) (control.Transport, error) {
	switch choice.transport {
	case "osc":
		return control.NewOSC(control.OSCConfig{
			ListenAddr: choice.oscListen,
			NotifyAddr: choice.oscNotify,
			Logger:     logger,
		})
	case "mqtt":
		return control.NewMQTT(control.MQTTConfig{
			Broker:      choice.mqttBroker,
			ClientID:    choice.clientID,
			TopicPrefix: choice.topicPrefix,
			Logger:      logger,
		}), nil
	default:
		return nil, nil
	}
}
