package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/batch-email/internal/domain"
	"github.com/ignite/batch-email/internal/pkg/awsretry"
	"github.com/ignite/batch-email/internal/pkg/retry"
)

// TemplateFieldResolver checks a row against the fields declared by the
// email template the row references.
type TemplateFieldResolver struct {
	store         MetadataStore
	table         string
	templateField string
	cache         *TemplateCache
	policy        retry.Policy
}

// NewTemplateFieldResolver builds a resolver reading templateField from each
// row and looking it up in table. The cache is shared by reference; pass one
// per run. Lookups are retried with policy, classified by awsretry.Classify.
func NewTemplateFieldResolver(store MetadataStore, table, templateField string, cache *TemplateCache, policy retry.Policy) *TemplateFieldResolver {
	if cache == nil {
		cache = NewTemplateCache(DefaultCacheCapacity)
	}
	if policy.Retryable == nil {
		policy.Retryable = awsretry.Classify
	}
	return &TemplateFieldResolver{
		store:         store,
		table:         table,
		templateField: templateField,
		cache:         cache,
		policy:        policy,
	}
}

// TemplateField returns the column holding the template reference.
func (r *TemplateFieldResolver) TemplateField() string { return r.templateField }

// MissingTemplateFields returns the template's required fields that row
// leaves blank. A row with a blank template reference yields nothing, since
// the static check already reports the column. Errors wrap either
// domain.ErrTemplateNotFound or ErrLookupFailed.
func (r *TemplateFieldResolver) MissingTemplateFields(ctx context.Context, row domain.Row) ([]string, error) {
	if r == nil || r.table == "" {
		return nil, nil
	}
	key := strings.TrimSpace(row.Value(r.templateField))
	if key == "" {
		return nil, nil
	}

	fields, err := r.cache.Lookup(ctx, r.table, key, func(ctx context.Context) ([]string, error) {
		raw, err := retry.DoValue(ctx, r.policy, func(ctx context.Context) (string, error) {
			return r.store.TemplateFields(ctx, r.table, key)
		})
		if err != nil {
			return nil, err
		}
		return ParseRequiredFields(raw), nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailed, key, err)
	}

	return MissingBasicFields(row, fields), nil
}
