package tasksource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianstephens/tickup/internal/constants"
	"github.com/julianstephens/tickup/internal/logger"
	"github.com/julianstephens/tickup/internal/models"
	"github.com/julianstephens/tickup/internal/storage"
)

// CachedSource keeps the last good snapshot under localTasks and serves it when
// the wrapped source fails.
type CachedSource struct {
	src   Source
	store storage.Store
}

func NewCachedSource(src Source, store storage.Store) *CachedSource {
	return &CachedSource{src: src, store: store}
}

func (c *CachedSource) Tasks(ctx context.Context) ([]models.TaskSnapshot, error) {
	if c.src == nil {
		return c.Cached()
	}

	tasks, err := c.src.Tasks(ctx)
	if err == nil {
		if err := c.save(tasks); err != nil {
			logger.Warn("Failed to cache task snapshot", "error", err)
		}
		return tasks, nil
	}

	cached, cacheErr := c.Cached()
	if cacheErr != nil {
		return nil, err
	}
	logger.Warn("Task source unavailable, using cached snapshot", "error", err, "count", len(cached))
	return cached, nil
}

// Cached returns the stored snapshot.
func (c *CachedSource) Cached() ([]models.TaskSnapshot, error) {
	data, err := c.store.Get(constants.KeyLocalTasks)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("no cached task snapshot")
	}
	if err != nil {
		return nil, err
	}

	var tasks []models.TaskSnapshot
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode cached tasks: %w", err)
	}
	return tasks, nil
}

func (c *CachedSource) save(tasks []models.TaskSnapshot) error {
	if tasks == nil {
		tasks = []models.TaskSnapshot{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return c.store.Set(constants.KeyLocalTasks, data)
}
