package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradepost/tradepost/minio"
	"github.com/tradepost/tradepost/postgres"
)

type Config struct {
	Postgres *postgres.Postgres
	Minio    *minio.Minio

	BaseCtx           context.Context
	BackgroundTimeout time.Duration

	// PairLockWait bounds how long EnsureConversation waits for the pair
	// lock before giving up with a busy error.
	PairLockWait time.Duration

	// ConfirmWindow is how long the buyer has to respond to a purchase
	// confirmation before it auto-accepts.
	ConfirmWindow time.Duration

	// SweepInterval is how often expired confirmations are resolved in the
	// background.
	SweepInterval time.Duration

	MessageBucket string
}

type Service struct {
	Postgres *postgres.Postgres
	Minio    *minio.Minio

	baseCtx           context.Context
	backgroundTimeout time.Duration
	pairLockWait      time.Duration
	confirmWindow     time.Duration
	sweepInterval     time.Duration
	messageBucket     string

	wg   sync.WaitGroup
	errs chan error
}

func New(cfg *Config) *Service {
	return &Service{
		Postgres: cfg.Postgres,
		Minio:    cfg.Minio,

		baseCtx:           cfg.BaseCtx,
		backgroundTimeout: cfg.BackgroundTimeout,
		pairLockWait:      cfg.PairLockWait,
		confirmWindow:     cfg.ConfirmWindow,
		sweepInterval:     cfg.SweepInterval,
		messageBucket:     cfg.MessageBucket,
		errs:              make(chan error, 1),
	}
}

func (svc *Service) Errs() <-chan error {
	return svc.errs
}

func (svc *Service) Close() error {
	svc.wg.Wait()
	close(svc.errs)
	return nil
}

func (svc *Service) background(fn func(ctx context.Context) error) {
	svc.wg.Go(func() {
		defer func() {
			if rcv := recover(); rcv != nil {
				select {
				case svc.errs <- fmt.Errorf("service background panic: %v", rcv):
				default:
				}
			}
		}()

		ctx, cancel := context.WithTimeout(svc.baseCtx, svc.backgroundTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			select {
			case svc.errs <- fmt.Errorf("service background error: %w", err):
			default:
			}
		}
	})
}
