package umbrella

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strconv"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/entity"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/logger"
)

// FetchAll pages through endpoint with limit/offset and returns the
// concatenated data arrays. It stops at the first page holding fewer than
// limit items. Pages are requested strictly one after another.
func (c *Client) FetchAll(ctx context.Context, endpoint string, params url.Values, limit int) ([]json.RawMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: page limit must be positive, got %d", errs.ErrInvalidArgument, limit)
	}

	var all []json.RawMessage
	for page, offset := 0, 0; ; page, offset = page+1, offset+limit {
		if c.maxPages > 0 && page >= c.maxPages {
			c.log.Warn("page limit reached, result may be incomplete",
				logger.Endpoint(endpoint), logger.Count(len(all)))
			return all, nil
		}

		q := maps.Clone(params)
		if q == nil {
			q = url.Values{}
		}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))

		body, err := c.Query(ctx, endpoint, q)
		if err != nil {
			return nil, err
		}
		items, err := entity.DecodePage(body)
		if err != nil {
			return nil, fmt.Errorf("%s offset %d: %w", endpoint, offset, err)
		}
		all = append(all, items...)
		c.log.Debug("page fetched", logger.Endpoint(endpoint), logger.Offset(offset), logger.Count(len(items)))

		if len(items) < limit {
			return all, nil
		}
	}
}
