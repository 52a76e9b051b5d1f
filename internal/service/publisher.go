// publisher.go — публикация фидов: генерация документа, локальная копия
// и загрузка в объектное хранилище.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/feed"
)

// feedPublishTotal — количество публикаций фидов по результату (ok, empty, error).
var feedPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fi_feed_publish_total",
	Help: "Общее количество публикаций фидов",
}, []string{"result"})

// FeedUploader — объектное хранилище фидов.
type FeedUploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
	Delete(ctx context.Context, name string) error
}

// Publisher публикует фиды.
type Publisher struct {
	gen      *feed.Generator
	uploader FeedUploader
	dir      string // пусто — без локальной копии
	logger   *slog.Logger
}

// NewPublisher создаёт сервис публикации. dir — каталог локальных копий.
func NewPublisher(gen *feed.Generator, uploader FeedUploader, dir string, logger *slog.Logger) *Publisher {
	return &Publisher{
		gen:      gen,
		uploader: uploader,
		dir:      dir,
		logger:   logger.With(slog.String("component", "publisher")),
	}
}

// Publish генерирует фид name из rows, сохраняет локальную копию
// и загружает документ. Возвращает публичную ссылку.
//
// Если объявлений нет, ранее опубликованный фид удаляется
// и возвращается ErrNoData.
func (p *Publisher) Publish(ctx context.Context, name string, rows []model.Listing) (string, error) {
	data, err := p.gen.Generate(rows, "")
	if errors.Is(err, feed.ErrNoData) {
		p.withdraw(ctx, name)
		feedPublishTotal.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("%w: %s", ErrNoData, name)
	}
	if err != nil {
		feedPublishTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("генерация фида %s: %w", name, err)
	}

	if p.dir != "" {
		if err := feed.WriteFile(filepath.Join(p.dir, name), data); err != nil {
			feedPublishTotal.WithLabelValues("error").Inc()
			return "", fmt.Errorf("локальная копия фида %s: %w", name, err)
		}
	}

	url, err := p.uploader.Upload(ctx, name, data)
	if err != nil {
		feedPublishTotal.WithLabelValues("error").Inc()
		return "", err
	}

	feedPublishTotal.WithLabelValues("ok").Inc()
	p.logger.Info("Фид опубликован",
		slog.String("name", name),
		slog.Int("offers", len(rows)),
		slog.String("url", url),
	)
	return url, nil
}

// withdraw снимает с публикации фид без объявлений. Ошибки только логируются.
func (p *Publisher) withdraw(ctx context.Context, name string) {
	if err := p.uploader.Delete(ctx, name); err != nil {
		p.logger.Warn("Ошибка удаления пустого фида",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
	if p.dir == "" {
		return
	}
	if err := os.Remove(filepath.Join(p.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("Ошибка удаления локальной копии фида",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
}
