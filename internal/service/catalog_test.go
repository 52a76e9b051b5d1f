package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/sheet"
)

var catalogHeader = []string{"owner_id", "source_file_id", "Internal ID", "address", "price"}

// countingStore считает чтения хранилища.
type countingStore struct {
	*sheet.Memory
	reads int
}

func (s *countingStore) ReadAllRows(ctx context.Context) ([][]string, error) {
	s.reads++
	return s.Memory.ReadAllRows(ctx)
}

func listingIDs(rows []model.Listing) string {
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ListingID
	}
	return strings.Join(ids, ",")
}

func newCatalogStore() *countingStore {
	return &countingStore{Memory: sheet.NewMemory(
		catalogHeader,
		[]string{"7", "f1", "x1", "Москва", "5 000 000"},
		[]string{"7", "f2", "x2", "Москва", "6000000"},
		[]string{"8", "f3", "y1", "Казань", "3000000"},
		[]string{"8", "f3", "", "Казань", "1"},
	)}
}

func TestCatalog_Filters(t *testing.T) {
	c := NewCatalog(newCatalogStore(), 0, testLogger())
	ctx := context.Background()

	all, err := c.Listings(ctx)
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ожидалось 3 объявления (строка без listing_id пропускается), получено %d", len(all))
	}
	if all[0].ListingID != "x1" || all[0].Price != "5000000" {
		t.Errorf("первое объявление = %+v, ожидали x1 с канонической ценой", all[0])
	}

	own, _ := c.ByOwner(ctx, "7")
	if keys := listingIDs(own); keys != "x1,x2" {
		t.Errorf("ByOwner(7) = %s", keys)
	}
	file, _ := c.BySourceFile(ctx, "8", "f3")
	if keys := listingIDs(file); keys != "y1" {
		t.Errorf("BySourceFile(8, f3) = %s", keys)
	}
	if other, _ := c.BySourceFile(ctx, "7", "f3"); len(other) != 0 {
		t.Errorf("чужой файл не должен попадать в выборку: %v", other)
	}
}

func TestCatalog_CacheAndInvalidate(t *testing.T) {
	store := newCatalogStore()
	c := NewCatalog(store, time.Minute, testLogger())
	ctx := context.Background()

	for range 3 {
		if _, err := c.ByOwner(ctx, "7"); err != nil {
			t.Fatal(err)
		}
	}
	if store.reads != 1 {
		t.Errorf("чтений хранилища = %d, ожидали 1 при включённом кэше", store.reads)
	}

	c.Invalidate()
	if _, err := c.Listings(ctx); err != nil {
		t.Fatal(err)
	}
	if store.reads != 2 {
		t.Errorf("после Invalidate чтений = %d, ожидали 2", store.reads)
	}
}

// blockingStore останавливает первое чтение после снятия снимка таблицы.
type blockingStore struct {
	*sheet.Memory
	once    sync.Once
	taken   chan struct{}
	release chan struct{}
}

func (s *blockingStore) ReadAllRows(ctx context.Context) ([][]string, error) {
	rows, err := s.Memory.ReadAllRows(ctx)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.taken)
		<-s.release
	}
	return rows, err
}

func TestCatalog_InvalidateDuringRead(t *testing.T) {
	store := &blockingStore{
		Memory:  newCatalogStore().Memory,
		taken:   make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewCatalog(store, time.Minute, testLogger())
	ctx := context.Background()

	done := make(chan []model.Listing)
	go func() {
		rows, _ := c.ByOwner(ctx, "7")
		done <- rows
	}()

	<-store.taken
	if err := store.AppendRows(ctx, [][]string{{"7", "f4", "x3", "Москва", "7000000"}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	c.Invalidate()
	close(store.release)

	if old := listingIDs(<-done); old != "x1,x2" {
		t.Errorf("чтение до записи = %s, ожидали x1,x2", old)
	}

	fresh, err := c.ByOwner(ctx, "7")
	if err != nil {
		t.Fatal(err)
	}
	if keys := listingIDs(fresh); keys != "x1,x2,x3" {
		t.Errorf("после Invalidate каталог = %s, ожидали x1,x2,x3: устаревший снимок попал в кэш", keys)
	}
}

func TestCatalog_NoCache(t *testing.T) {
	store := newCatalogStore()
	c := NewCatalog(store, 0, testLogger())
	for range 2 {
		_, _ = c.Listings(context.Background())
	}
	if store.reads != 2 {
		t.Errorf("без кэша чтений = %d, ожидали 2", store.reads)
	}
}

func TestCatalog_EmptyAndCorrupt(t *testing.T) {
	c := NewCatalog(sheet.NewMemory(), 0, testLogger())
	rows, err := c.Listings(context.Background())
	if err != nil || len(rows) != 0 {
		t.Errorf("пустое хранилище: %v, %v", rows, err)
	}

	corrupt := NewCatalog(sheet.NewMemory([]string{"listing_id", "internal_id"}), 0, testLogger())
	if _, err := corrupt.Listings(context.Background()); !errors.Is(err, sheet.ErrCorruptHeader) {
		t.Errorf("ожидалась ErrCorruptHeader, получено %v", err)
	}
}
