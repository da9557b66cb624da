package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bai-labs/figmaproxy/mq"
	"github.com/bai-labs/figmaproxy/service"
)

// InvalidateCacheMessage asks for cache invalidation from outside the
// process, e.g. a webhook pipeline reacting to Figma file updates. With
// several instances behind one queue, whichever instance receives the
// message applies it to the shared cache.
type InvalidateCacheMessage struct {
	FileKey string `json:"fileKey"`
	NodeId  string `json:"nodeId"`
	All     bool   `json:"all"`
}

type MQConsumer struct {
	invalidationQueue mq.MessageQueue
	svc               *service.Service
}

func NewMQConsumer(invalidationQueue mq.MessageQueue, svc *service.Service) *MQConsumer {
	return &MQConsumer{
		invalidationQueue: invalidationQueue,
		svc:               svc,
	}
}

const visibilityTimeout = 60

func (mqConsumer MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := mqConsumer.invalidationQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Error().Err(err).Msg("mqConsumer receive error")
			continue
		}

		if msg == nil {
			continue
		}

		var invalidateMsg InvalidateCacheMessage
		if err := json.Unmarshal([]byte(msg.Body), &invalidateMsg); err != nil {
			continue
		}

		// timeout should be a little less than queue visibility timeout
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)

		switch {
		case invalidateMsg.All:
			files, nodes, invErr := mqConsumer.svc.InvalidateAllCache(ctx)
			err = invErr
			if err == nil {
				log.Info().Int64("files", files).Int64("nodes", nodes).Msg("cleared document cache")
			}
		case invalidateMsg.NodeId != "":
			err = mqConsumer.svc.InvalidateNodeCache(ctx, invalidateMsg.FileKey, invalidateMsg.NodeId)
		case invalidateMsg.FileKey != "":
			err = mqConsumer.svc.InvalidateFileCache(ctx, invalidateMsg.FileKey)
		}
		cancel()

		if err != nil {
			log.Error().Err(err).Str("fileKey", invalidateMsg.FileKey).Msg("cache invalidation failed")
			continue
		}

		if err := mqConsumer.invalidationQueue.Delete(context.Background(), msg); err != nil {
			log.Error().Err(err).Msg("mqConsumer delete error")
			continue
		}
	}
}
