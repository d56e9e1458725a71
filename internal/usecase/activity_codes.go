package usecase

import (
	"context"
	"errors"
	"log/slog"

	"timeledger/internal/domain"
	"timeledger/internal/ports"
)

// ActivityCodeRegistry owns the per-tenant activity code hierarchy.
type ActivityCodeRegistry struct {
	Log     *slog.Logger
	Codes   ports.ActivityCodeRepository
	Entries ports.TimeEntryRepository
	Now     Clock
	NewID   IDFunc
}

func (r *ActivityCodeRegistry) ready() error {
	if r.Codes == nil || r.Entries == nil {
		return errNotInitialized
	}
	return nil
}

// Create validates and stores a new code. A non-empty parentID nests it
// below that code in the same write.
func (r *ActivityCodeRegistry) Create(ctx context.Context, actor domain.Actor, in domain.ActivityCodeInput, parentID string) (domain.ActivityCode, error) {
	if err := r.ready(); err != nil {
		return domain.ActivityCode{}, err
	}
	now := r.Now.now()
	c, err := domain.NewActivityCode(actor, r.NewID.next(), in, now)
	if err != nil {
		return domain.ActivityCode{}, err
	}
	if err := r.ensureUniqueCode(ctx, c); err != nil {
		return domain.ActivityCode{}, err
	}
	if parentID != "" {
		if c, err = r.attach(ctx, actor, c, parentID); err != nil {
			return domain.ActivityCode{}, err
		}
	}
	saved, err := r.Codes.Put(ctx, c)
	if err != nil {
		return domain.ActivityCode{}, err
	}
	logOrDefault(r.Log).Info("activity code created",
		slog.String("tenant", saved.TenantID),
		slog.String("id", saved.ID),
		slog.String("code", saved.Code),
		slog.Int("level", saved.Hierarchy.Level),
	)
	return saved, nil
}

func (r *ActivityCodeRegistry) Get(ctx context.Context, tenantID, id string) (domain.ActivityCode, error) {
	if err := r.ready(); err != nil {
		return domain.ActivityCode{}, err
	}
	return r.Codes.Get(ctx, tenantID, id)
}

func (r *ActivityCodeRegistry) List(ctx context.Context, tenantID string) ([]domain.ActivityCode, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.Codes.List(ctx, tenantID)
}

// Update applies patch to the code. The code's own hierarchy is recomputed
// from its current parent; children are left untouched and keep their cached
// path and full name until they are written themselves.
func (r *ActivityCodeRegistry) Update(ctx context.Context, actor domain.Actor, id string, version int64, patch domain.ActivityCodePatch) (domain.ActivityCode, error) {
	return r.mutate(ctx, actor, id, version, "update", func(c domain.ActivityCode) (domain.ActivityCode, error) {
		var parent *domain.ActivityCode
		if c.HasParent() {
			p, err := r.Codes.Get(ctx, c.TenantID, c.ParentID)
			switch {
			case err == nil:
				parent = &p
			case !errors.Is(err, domain.ErrNotFound):
				return c, err
			}
		}
		next, err := c.Apply(actor, patch, parent, r.Now.now())
		if err != nil {
			return c, err
		}
		if next.Code != c.Code {
			if err := r.ensureUniqueCode(ctx, next); err != nil {
				return c, err
			}
		}
		return next, nil
	})
}

// SetParent nests the code below parentID.
func (r *ActivityCodeRegistry) SetParent(ctx context.Context, actor domain.Actor, id string, version int64, parentID string) (domain.ActivityCode, error) {
	if parentID == id {
		return domain.ActivityCode{}, domain.Invariant(domain.IssueOwnParent)
	}
	return r.mutate(ctx, actor, id, version, "set_parent", func(c domain.ActivityCode) (domain.ActivityCode, error) {
		return r.attach(ctx, actor, c, parentID)
	})
}

// RemoveParent makes the code a root code.
func (r *ActivityCodeRegistry) RemoveParent(ctx context.Context, actor domain.Actor, id string, version int64) (domain.ActivityCode, error) {
	return r.mutate(ctx, actor, id, version, "remove_parent", func(c domain.ActivityCode) (domain.ActivityCode, error) {
		return c.RemoveParent(actor, r.Now.now()), nil
	})
}

// Deactivate soft-deletes the code. Existing references stay valid.
func (r *ActivityCodeRegistry) Deactivate(ctx context.Context, actor domain.Actor, id string, version int64) (domain.ActivityCode, error) {
	return r.mutate(ctx, actor, id, version, "deactivate", func(c domain.ActivityCode) (domain.ActivityCode, error) {
		return c.Deactivate(actor, r.Now.now()), nil
	})
}

// Delete removes a code that nothing references. Codes with children or time
// entries must be deactivated instead.
func (r *ActivityCodeRegistry) Delete(ctx context.Context, actor domain.Actor, id string, version int64) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := actor.Validate(); err != nil {
		return err
	}
	c, err := r.Codes.Get(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if err := domain.CheckVersion("activity code", id, c.Version, version); err != nil {
		return err
	}
	all, err := r.Codes.List(ctx, actor.TenantID)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ParentID == id {
			return domain.Invariant("activity code %s has child codes; deactivate it instead", c.Code)
		}
	}
	entries, err := r.Entries.ListByActivityCode(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return domain.Invariant("activity code %s is used by %d time entries; deactivate it instead", c.Code, len(entries))
	}
	if err := r.Codes.Delete(ctx, actor.TenantID, id, version); err != nil {
		return err
	}
	logOrDefault(r.Log).Info("activity code deleted", slog.String("tenant", actor.TenantID), slog.String("id", id))
	return nil
}

// ValidateHierarchy sweeps every code of the tenant and reports drift. It
// never writes.
func (r *ActivityCodeRegistry) ValidateHierarchy(ctx context.Context, tenantID string) (domain.HierarchyReport, error) {
	if err := r.ready(); err != nil {
		return domain.HierarchyReport{}, err
	}
	all, err := r.Codes.List(ctx, tenantID)
	if err != nil {
		return domain.HierarchyReport{}, err
	}
	report := domain.ValidateHierarchy(all)
	log := logOrDefault(r.Log)
	for _, issue := range report.Issues {
		log.Warn("activity code hierarchy drift",
			slog.String("tenant", tenantID),
			slog.String("code", issue.Code),
			slog.Any("issues", issue.Issues),
		)
	}
	return report, nil
}

func (r *ActivityCodeRegistry) attach(ctx context.Context, actor domain.Actor, c domain.ActivityCode, parentID string) (domain.ActivityCode, error) {
	if parentID == c.ID {
		return c, domain.Invariant(domain.IssueOwnParent)
	}
	parent, err := r.Codes.Get(ctx, c.TenantID, parentID)
	if err != nil {
		return c, err
	}
	all, err := r.Codes.List(ctx, c.TenantID)
	if err != nil {
		return c, err
	}
	return c.SetParent(actor, parent, all, r.Now.now())
}

func (r *ActivityCodeRegistry) ensureUniqueCode(ctx context.Context, c domain.ActivityCode) error {
	existing, err := r.Codes.FindByCode(ctx, c.TenantID, c.Code)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID != c.ID {
			return domain.Invariant("activity code %s already exists", c.Code)
		}
	}
	return nil
}

func (r *ActivityCodeRegistry) mutate(ctx context.Context, actor domain.Actor, id string, version int64, op string,
	fn func(domain.ActivityCode) (domain.ActivityCode, error)) (domain.ActivityCode, error) {
	if err := r.ready(); err != nil {
		return domain.ActivityCode{}, err
	}
	if err := actor.Validate(); err != nil {
		return domain.ActivityCode{}, err
	}
	c, err := r.Codes.Get(ctx, actor.TenantID, id)
	if err != nil {
		return domain.ActivityCode{}, err
	}
	if err := domain.CheckVersion("activity code", id, c.Version, version); err != nil {
		return domain.ActivityCode{}, err
	}
	next, err := fn(c)
	if err != nil {
		return domain.ActivityCode{}, err
	}
	saved, err := r.Codes.Put(ctx, next)
	if err != nil {
		return domain.ActivityCode{}, err
	}
	logOrDefault(r.Log).Info("activity code updated",
		slog.String("op", op),
		slog.String("tenant", saved.TenantID),
		slog.String("id", saved.ID),
		slog.Int64("version", saved.Version),
	)
	return saved, nil
}
