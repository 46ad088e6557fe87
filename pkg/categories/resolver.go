// Package categories resolves the security-relevant category IDs that scope
// the activity report.
package categories

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/entity"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/logger"
)

// Querier is the part of the report client the resolver needs.
type Querier interface {
	Query(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// Resolver fetches the category taxonomy once per run.
type Resolver struct {
	q        Querier
	endpoint string
	log      *zap.Logger

	all []entity.Category
}

// NewResolver returns a Resolver reading endpoint ("categories" or an
// absolute URL) through q.
func NewResolver(q Querier, endpoint string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{q: q, endpoint: endpoint, log: log}
}

// Categories returns the whole taxonomy, querying it on first use.
func (r *Resolver) Categories(ctx context.Context) ([]entity.Category, error) {
	if r.all != nil {
		return r.all, nil
	}
	body, err := r.q.Query(ctx, r.endpoint, nil)
	if err != nil {
		return nil, err
	}
	raw, err := entity.DecodePage(body)
	if err != nil {
		return nil, err
	}
	cats, err := entity.DecodeCategories(raw)
	if err != nil {
		return nil, err
	}
	r.all = cats
	r.log.Debug("categories loaded", logger.Count(len(cats)))
	return cats, nil
}

// SecurityCategoryIDs maps the label of every security category to its ID.
func (r *Resolver) SecurityCategoryIDs(ctx context.Context) (map[string]int, error) {
	cats, err := r.Categories(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int)
	for _, c := range cats {
		if c.IsSecurity() {
			ids[c.Label] = c.ID
		}
	}
	return ids, nil
}

// FilterParam renders ids as the comma-joined value of the categories query
// parameter, in ascending order.
func FilterParam(ids map[string]int) string {
	vals := make([]int, 0, len(ids))
	for _, id := range ids {
		vals = append(vals, id)
	}
	sort.Ints(vals)
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
