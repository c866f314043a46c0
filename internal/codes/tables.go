package codes

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/hapi-pipelines/internal/store"
)

// NewSectors returns the sector resolver.
func NewSectors(entries []Entry, aliases map[string]string) *Resolver {
	r := NewResolver("sector", entries, aliases)
	r.record = func(e Entry) store.Record { return store.Sector{Code: e.Code, Name: e.Name} }
	return r
}

// NewOrgTypes returns the organisation type resolver.
func NewOrgTypes(entries []Entry, aliases map[string]string) *Resolver {
	r := NewResolver("org type", entries, aliases)
	r.record = func(e Entry) store.Record { return store.OrgType{Code: e.Code, Description: e.Name} }
	return r
}

// Populate writes the official entries to the resolver's table.
func (r *Resolver) Populate(ctx context.Context, session store.Session) error {
	if r.record == nil {
		return fmt.Errorf("populate %s: resolver has no table", r.kind)
	}
	for _, e := range r.entries {
		if err := session.Add(ctx, r.record(e)); err != nil {
			return fmt.Errorf("add %s %s: %w", r.kind, e.Code, err)
		}
	}
	if err := session.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", r.kind, err)
	}
	return nil
}
