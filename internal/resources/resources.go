// Package resources is an owner-scoped registry of discoverable
// metadata records: datasets, model endpoints, documents. Names are
// globally unique; only the registering owner may update or remove a
// record.
package resources

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/parlane/switchyard/internal/directory"
	"github.com/parlane/switchyard/internal/faults"
	"github.com/parlane/switchyard/internal/models"
	"gorm.io/gorm"
)

type Registry struct {
	db  *gorm.DB
	dir *directory.Directory
	now func() time.Time

	mu sync.Mutex
}

type Opts struct {
	DB        *gorm.DB
	Directory *directory.Directory
	// Now defaults to time.Now.
	Now func() time.Time
}

func New(opts Opts) (*Registry, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("resources: database handle is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("resources: directory is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{db: opts.DB, dir: opts.Directory, now: now}, nil
}

// Put registers a resource under caller, or updates it when caller
// already owns a record with that name.
func (r *Registry) Put(caller, name, uri string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return faults.Validationf("resource name must not be empty")
	}
	if uri == "" {
		return faults.Validationf("resource uri must not be empty")
	}
	agent, err := r.dir.Get(caller)
	if err != nil {
		return err
	}
	if !agent.Registered() {
		return faults.Validationf("agent %s is not registered", caller)
	}

	var metaJSON string
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("resources: encode metadata: %w", err)
		}
		metaJSON = string(raw)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Resource
		if err := tx.Where("name = ?", name).Limit(1).Find(&existing).Error; err != nil {
			return fmt.Errorf("resources: lookup %s: %w", name, err)
		}
		now := r.now()
		if existing.Name == "" {
			if err := tx.Create(&models.Resource{
				Name:      name,
				Owner:     caller,
				URI:       uri,
				Metadata:  metaJSON,
				CreatedAt: now,
				UpdatedAt: now,
			}).Error; err != nil {
				return fmt.Errorf("resources: store %s: %w", name, err)
			}
			return nil
		}
		if existing.Owner != caller {
			return faults.Authorizationf("resource %s belongs to %s", name, existing.Owner)
		}
		if err := tx.Model(&models.Resource{}).
			Where("name = ?", name).
			Updates(map[string]any{
				"uri":        uri,
				"metadata":   metaJSON,
				"updated_at": now,
			}).Error; err != nil {
			return fmt.Errorf("resources: update %s: %w", name, err)
		}
		return nil
	})
}

// Get returns the resource with the given name, or a zero-valued record
// when no such resource exists.
func (r *Registry) Get(name string) (models.Resource, error) {
	var resource models.Resource
	if err := r.db.Where("name = ?", name).Limit(1).Find(&resource).Error; err != nil {
		return models.Resource{}, fmt.Errorf("resources: lookup %s: %w", name, err)
	}
	return resource, nil
}

// ListByOwner returns all resources registered by owner, oldest first.
func (r *Registry) ListByOwner(owner string) ([]models.Resource, error) {
	var resources []models.Resource
	if err := r.db.Where("owner = ?", owner).
		Order("created_at ASC, name ASC").
		Find(&resources).Error; err != nil {
		return nil, fmt.Errorf("resources: list for %s: %w", owner, err)
	}
	return resources, nil
}

// Remove deletes the caller's resource. Removing an unknown name is a
// ValidationError; removing someone else's record is an
// AuthorizationError.
func (r *Registry) Remove(caller, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Resource
		if err := tx.Where("name = ?", name).Limit(1).Find(&existing).Error; err != nil {
			return fmt.Errorf("resources: lookup %s: %w", name, err)
		}
		if existing.Name == "" {
			return faults.Validationf("unknown resource %s", name)
		}
		if existing.Owner != caller {
			return faults.Authorizationf("resource %s belongs to %s", name, existing.Owner)
		}
		if err := tx.Where("name = ?", name).Delete(&models.Resource{}).Error; err != nil {
			return fmt.Errorf("resources: remove %s: %w", name, err)
		}
		return nil
	})
}

// MetadataMap decodes a resource's stored metadata. An empty metadata
// column yields an empty map.
func MetadataMap(resource models.Resource) (map[string]any, error) {
	if resource.Metadata == "" {
		return map[string]any{}, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(resource.Metadata), &meta); err != nil {
		return nil, fmt.Errorf("resources: decode metadata for %s: %w", resource.Name, err)
	}
	return meta, nil
}
