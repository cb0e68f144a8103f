package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Loader is the part of the synchronizer the scheduler drives.
type Loader interface {
	Load(ctx context.Context, silent bool) error
}

// ResyncScheduler 장바구니 백그라운드 재동기화 스케줄러
type ResyncScheduler struct {
	cron    *cron.Cron
	loader  Loader
	spec    string
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

// NewResyncScheduler 재동기화 스케줄러 생성
// spec 예: "@every 30s"
func NewResyncScheduler(loader Loader, spec string, timeout time.Duration) *ResyncScheduler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ResyncScheduler{
		cron:    cron.New(),
		loader:  loader,
		spec:    spec,
		timeout: timeout,
	}
}

// Start 스케줄러 시작
func (s *ResyncScheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.run)
	if err != nil {
		logger.Error("Failed to add cron job for cart resync", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Cart resync scheduler started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// Stop 스케줄러 중지, 실행 중인 작업이 끝날 때까지 대기
func (s *ResyncScheduler) Stop() {
	logger.Info("Stopping cart resync scheduler...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Cart resync scheduler stopped", nil)
}

// run 은 이전 실행이 끝나지 않았으면 건너뜀
func (s *ResyncScheduler) run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Debug("Previous cart resync still running, skipping", nil)
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.loader.Load(ctx, true); err != nil {
		logger.Warn("Scheduled cart resync interrupted", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	logger.Debug("Scheduled cart resync completed", nil)
}
