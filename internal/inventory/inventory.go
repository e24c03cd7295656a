// Package inventory walks the controller's paginated object lists.
package inventory

import (
	"context"
	"fmt"

	"github.com/martinsuchenak/fmcsweep/internal/fmc"
	"github.com/martinsuchenak/fmcsweep/internal/log"
	"github.com/martinsuchenak/fmcsweep/internal/model"
)

// Lister fetches one page of objects
type Lister interface {
	ListPage(ctx context.Context, category model.Category, offset, limit int, unusedOnly bool) (fmc.Page, error)
}

// Collector materialises full object collections
type Collector struct {
	api      Lister
	pageSize int
}

// NewCollector creates a collector. A pageSize outside [1, fmc.MaxPageSize]
// uses the controller maximum.
func NewCollector(api Lister, pageSize int) *Collector {
	if pageSize <= 0 || pageSize > fmc.MaxPageSize {
		pageSize = fmc.MaxPageSize
	}
	return &Collector{api: api, pageSize: pageSize}
}

// Collect returns every object in the category in controller order. With
// unusedOnly, system owned objects are dropped since they can never be deleted.
func (c *Collector) Collect(ctx context.Context, category model.Category, unusedOnly bool) ([]model.Object, error) {
	var objects []model.Object
	skipped := 0

	pages := 1
	for page, offset := 0, 0; page < pages; page, offset = page+1, offset+c.pageSize {
		p, err := c.api.ListPage(ctx, category, offset, c.pageSize, unusedOnly)
		if err != nil {
			return nil, fmt.Errorf("listing %s at offset %d: %w", category, offset, err)
		}
		if page == 0 {
			pages = p.Pages
		}
		for _, item := range p.Items {
			if unusedOnly && item.Metadata.IsReadOnly() {
				skipped++
				continue
			}
			objects = append(objects, item)
		}
	}

	log.Debug("Collected objects", "category", category, "unused_only", unusedOnly, "count", len(objects), "system_skipped", skipped)
	return objects, nil
}

// Count returns the number of objects Collect would return
func (c *Collector) Count(ctx context.Context, category model.Category, unusedOnly bool) (int, error) {
	objects, err := c.Collect(ctx, category, unusedOnly)
	if err != nil {
		return 0, err
	}
	return len(objects), nil
}

// Index resolves object names to references
type Index map[string]model.MemberRef

// Lookup returns the reference for name
func (ix Index) Lookup(name string) (model.MemberRef, bool) {
	ref, ok := ix[name]
	return ref, ok
}

// snapshotOrder decides which object wins when names collide across categories
var snapshotOrder = []model.Category{model.Networks, model.Hosts, model.Ranges, model.NetworkGroups}

// Snapshot indexes every network object and group currently on the controller
func (c *Collector) Snapshot(ctx context.Context) (Index, error) {
	ix := make(Index)
	for _, category := range snapshotOrder {
		objects, err := c.Collect(ctx, category, false)
		if err != nil {
			return nil, err
		}
		for _, o := range objects {
			if _, exists := ix[o.Name]; !exists {
				ix[o.Name] = o.Ref()
			}
		}
	}
	log.Debug("Refreshed object index", "objects", len(ix))
	return ix, nil
}
