package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
)

const (
	archiveTimeout   = 5 * time.Second
	archiveQueueSize = 256
)

type archiveJob func(ctx context.Context)

// archiver writes to the result repository on its own goroutine. Jobs run one at a time in the
// order they were queued, so a room id's stale result is always dropped before a new one is saved.
type archiver struct {
	logger     *slog.Logger
	resultRepo resultRepo
	resultTTL  time.Duration

	mu      sync.RWMutex
	stopped bool
	jobs    chan archiveJob
	done    chan struct{}
}

func newArchiver(logger *slog.Logger, resultRepo resultRepo, resultTTL time.Duration) *archiver {
	archiver := &archiver{
		logger:     logger.With("component", "archiver"),
		resultRepo: resultRepo,
		resultTTL:  resultTTL,
		jobs:       make(chan archiveJob, archiveQueueSize),
		done:       make(chan struct{}),
	}

	go archiver.run()

	return archiver
}

func (that *archiver) run() {
	defer close(that.done)

	for job := range that.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		job(ctx)
		cancel()
	}
}

// enqueue blocks only while the queue is full. Jobs queued after stop are dropped.
func (that *archiver) enqueue(job archiveJob) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.stopped {
		return false
	}

	that.jobs <- job

	return true
}

// stop waits for every queued job to finish.
func (that *archiver) stop() {
	that.mu.Lock()
	if !that.stopped {
		that.stopped = true
		close(that.jobs)
	}
	that.mu.Unlock()

	<-that.done
}

func (that *archiver) save(result entity.GameResult) {
	log := that.logger.With("method", "save", "room_id", result.RoomID)

	queued := that.enqueue(func(ctx context.Context) {
		if err := that.resultRepo.Save(ctx, &result, that.resultTTL); err != nil {
			log.Error("failed to archive game result", "error", err)
			return
		}

		log.Debug("game result archived", "winner", result.Winner, "reason", result.Reason)
	})
	if !queued {
		log.Warn("archiver stopped, game result dropped")
	}
}

// forget drops a result left behind by an earlier room with the same id.
func (that *archiver) forget(roomID string) {
	log := that.logger.With("method", "forget", "room_id", roomID)

	that.enqueue(func(ctx context.Context) {
		err := that.resultRepo.DeleteByID(ctx, roomID)
		if errors.Is(err, repository.ErrGameNotFound) {
			return
		}

		if err != nil {
			log.Error("failed to delete stale game result", "error", err)
			return
		}

		log.Debug("stale game result deleted")
	})
}
