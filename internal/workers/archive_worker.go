package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/prepmate/prepmate/internal/services"
)

const (
	ArchiveStream = "archive:stream"
	archiveGroup  = "archive-workers"
)

// ArchiveEnqueuer pushes concluded sessions onto the archive stream. It is
// the services.Archiver wired into InterviewService.
type ArchiveEnqueuer struct {
	Redis *redis.Client
}

func (e *ArchiveEnqueuer) EnqueueSessionArchive(ctx context.Context, userID, planID, sessionID string) error {
	return e.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: ArchiveStream,
		Values: map[string]any{
			"user_id":    userID,
			"plan_id":    planID,
			"session_id": sessionID,
			"ts_unix":    strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}

// ArchiveWorkerPool drains the archive stream and mirrors each concluded
// session into Postgres. Loss here is acceptable: Mongo remains the source
// of truth.
type ArchiveWorkerPool struct {
	Redis      *redis.Client
	Archive    services.ArchiveService
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *ArchiveWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Archive == nil {
		return errors.New("ArchiveWorkerPool missing dependency: Redis/Archive must be set")
	}
	if p.Stream == "" {
		p.Stream = ArchiveStream
	}
	if p.Group == "" {
		p.Group = archiveGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "archiver"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *ArchiveWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *ArchiveWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	userID := getStr("user_id")
	planID := getStr("plan_id")
	sessionID := getStr("session_id")
	if planID == "" || sessionID == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"plan_id":    planID,
		"session_id": sessionID,
	})

	if err := p.Archive.ArchiveSession(ctx, userID, planID, sessionID); err != nil {
		log.WithError(err).Warn("session archive failed")
		return
	}
	log.Info("session archived")
}
