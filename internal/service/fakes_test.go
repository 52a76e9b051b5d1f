package service

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/repository"
)

// memFileRepo — реестр файлов в памяти.
type memFileRepo struct {
	mu        sync.Mutex
	files     map[string]model.FileMetadata
	failWrite error
	staleArgs []model.FileStatus
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{files: map[string]model.FileMetadata{}}
}

func (r *memFileRepo) Create(_ context.Context, f *model.FileMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return r.failWrite
	}
	if _, ok := r.files[f.FileID]; ok {
		return repository.ErrConflict
	}
	r.files[f.FileID] = *f
	return nil
}

func (r *memFileRepo) GetByID(_ context.Context, fileID string) (*model.FileMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r *memFileRepo) List(_ context.Context, filters repository.FileListFilters) ([]*model.FileMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.FileMetadata
	for _, f := range r.files {
		if filters.OwnerID != nil && f.OwnerID != *filters.OwnerID {
			continue
		}
		if filters.ObjectType != nil && f.ObjectType != *filters.ObjectType {
			continue
		}
		if filters.Status != nil && f.Status != *filters.Status {
			continue
		}
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadDate.Equal(out[j].UploadDate) {
			return out[i].UploadDate.After(out[j].UploadDate)
		}
		return out[i].FileID < out[j].FileID
	})
	return out, nil
}

func (r *memFileRepo) UpdateStatus(_ context.Context, f *model.FileMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return r.failWrite
	}
	if _, ok := r.files[f.FileID]; !ok {
		return repository.ErrNotFound
	}
	r.files[f.FileID] = *f
	return nil
}

func (r *memFileRepo) Delete(_ context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[fileID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.files, fileID)
	return nil
}

func (r *memFileRepo) DeleteStale(_ context.Context, before time.Time, statuses []model.FileStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return 0, r.failWrite
	}
	r.staleArgs = statuses
	n := 0
	for id, f := range r.files {
		if f.LastUpdate.Before(before) && slices.Contains(statuses, f.Status) {
			delete(r.files, id)
			n++
		}
	}
	return n, nil
}

// memUploader — объектное хранилище в памяти.
type memUploader struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	failWrite error
}

func newMemUploader() *memUploader {
	return &memUploader{objects: map[string][]byte{}}
}

func (u *memUploader) Upload(_ context.Context, name string, data []byte) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failWrite != nil {
		return "", u.failWrite
	}
	u.objects[name] = slices.Clone(data)
	return "https://cdn.example.com/feeds/" + name, nil
}

func (u *memUploader) Delete(_ context.Context, name string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, name)
	u.deleted = append(u.deleted, name)
	return nil
}

func (u *memUploader) object(name string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.objects[name]
	return data, ok
}

// stepClock — часы, сдвигающиеся на секунду при каждом вызове.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}
