// retention.go — фоновая очистка устаревших записей реестра файлов.
//
// Удаляются записи в статусах new, processed и error, не менявшиеся
// дольше срока хранения. Файлы в обработке не трогаются.
// Запускается как горутина с периодическим тикером (FI_RETENTION_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/repository"
)

// Prometheus метрики очистки
var (
	retentionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fi_retention_runs_total",
		Help: "Общее количество запусков очистки реестра файлов",
	}, []string{"result"})

	retentionDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fi_retention_deleted_total",
		Help: "Общее количество удалённых устаревших записей",
	})
)

// staleStatuses — статусы, записи в которых подлежат очистке.
// processing старше срока хранения — брошенная обработка.
var staleStatuses = []model.FileStatus{
	model.FileStatusNew,
	model.FileStatusProcessing,
	model.FileStatusProcessed,
	model.FileStatusError,
}

// RetentionService — сервис очистки реестра файлов.
type RetentionService struct {
	repo     repository.FileMetadataRepository
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetentionService создаёт сервис очистки. days — срок хранения записей в днях.
func NewRetentionService(
	repo repository.FileMetadataRepository,
	days int,
	interval time.Duration,
	logger *slog.Logger,
) *RetentionService {
	return &RetentionService{
		repo:     repo,
		maxAge:   time.Duration(days) * 24 * time.Hour,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "retention")),
	}
}

// Start запускает фоновую горутину очистки.
func (s *RetentionService) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)

	s.logger.Info("Очистка реестра запущена",
		slog.String("interval", s.interval.String()),
		slog.String("max_age", s.maxAge.String()),
	)
}

// Stop останавливает фоновую очистку и дожидается завершения текущего прохода.
func (s *RetentionService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Очистка реестра остановлена")
}

func (s *RetentionService) run(ctx context.Context) {
	defer close(s.done)

	// Первый запуск — сразу после старта
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход очистки и возвращает число удалённых записей.
func (s *RetentionService) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.now().UTC().Add(-s.maxAge)
	n, err := s.repo.DeleteStale(ctx, before, staleStatuses)
	if err != nil {
		retentionRunsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка очистки реестра",
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	retentionRunsTotal.WithLabelValues("ok").Inc()
	retentionDeletedTotal.Add(float64(n))
	s.logger.Info("Очистка реестра завершена",
		slog.Int("deleted", n),
		slog.Time("before", before),
	)
	return n, nil
}
