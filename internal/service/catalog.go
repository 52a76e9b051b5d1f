// catalog.go — чтение каталога объявлений из табличного хранилища.
// Снимок каталога кэшируется в hashicorp/golang-lru/v2/expirable
// и сбрасывается после каждой изменяющей сверки.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/normalizer"
	"github.com/BogdanPhenda/Nova/internal/sheet"
)

// Prometheus-метрики кэша каталога.
var (
	catalogCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fi_catalog_cache_hits_total",
		Help: "Общее количество попаданий в кэш каталога.",
	})
	catalogCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fi_catalog_cache_misses_total",
		Help: "Общее количество промахов кэша каталога.",
	})
)

// snapshotKey — ключ единственного снимка каталога.
const snapshotKey = "catalog"

// Catalog — каталог объявлений хранилища.
type Catalog struct {
	store  sheet.Store
	cache  *expirable.LRU[string, []model.Listing] // nil — кэш выключен
	logger *slog.Logger

	// mu защищает gen и запись в кэш. Invalidate увеличивает gen,
	// снимок, прочитанный до сброса, в кэш не попадает.
	mu  sync.Mutex
	gen uint64
}

// NewCatalog создаёт каталог. ttl <= 0 отключает кэширование.
func NewCatalog(store sheet.Store, ttl time.Duration, logger *slog.Logger) *Catalog {
	c := &Catalog{
		store:  store,
		logger: logger.With(slog.String("component", "catalog")),
	}
	if ttl > 0 {
		c.cache = expirable.NewLRU[string, []model.Listing](1, nil, ttl)
	}
	return c
}

// Listings возвращает все объявления хранилища в порядке строк.
// Срез общий для вызывающих и не должен изменяться.
func (c *Catalog) Listings(ctx context.Context) ([]model.Listing, error) {
	if c.cache != nil {
		if rows, ok := c.cache.Get(snapshotKey); ok {
			catalogCacheHitsTotal.Inc()
			return rows, nil
		}
		catalogCacheMissesTotal.Inc()
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	rows, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.cache.Add(snapshotKey, rows)
		}
		c.mu.Unlock()
	}
	return rows, nil
}

// ByOwner возвращает объявления владельца.
func (c *Catalog) ByOwner(ctx context.Context, ownerID string) ([]model.Listing, error) {
	return c.filter(ctx, func(l *model.Listing) bool { return l.OwnerID == ownerID })
}

// BySourceFile возвращает объявления одного загруженного файла владельца.
func (c *Catalog) BySourceFile(ctx context.Context, ownerID, fileID string) ([]model.Listing, error) {
	return c.filter(ctx, func(l *model.Listing) bool {
		return l.OwnerID == ownerID && l.SourceFileID == fileID
	})
}

// Invalidate сбрасывает снимок каталога.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.cache != nil {
		c.cache.Remove(snapshotKey)
	}
}

func (c *Catalog) filter(ctx context.Context, keep func(*model.Listing) bool) ([]model.Listing, error) {
	all, err := c.Listings(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Listing
	for i := range all {
		if keep(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// load читает хранилище и разбирает строки по каноническому заголовку.
// Строки без listing_id пропускаются.
func (c *Catalog) load(ctx context.Context) ([]model.Listing, error) {
	rows, err := c.store.ReadAllRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("чтение каталога: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := sheet.CanonicalHeader(rows[0])
	if err := sheet.CheckHeader(header); err != nil {
		return nil, err
	}

	out := make([]model.Listing, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		l := normalizer.Listing(header, row)
		if l.ListingID == "" {
			skipped++
			continue
		}
		out = append(out, l)
	}

	c.logger.Debug("Каталог прочитан",
		slog.Int("listings", len(out)),
		slog.Int("skipped", skipped),
	)
	return out, nil
}
