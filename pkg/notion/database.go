package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// maxPageSize is the largest page the query endpoint returns.
const maxPageSize = 100

// QueryAll follows the cursor until every matching page of dbID is read. A
// nil query reads the whole database. Filter and Sorts carry over to each
// follow-up request.
func QueryAll(ctx context.Context, c Client, dbID string, query *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	base := notionapi.DatabaseQueryRequest{PageSize: maxPageSize}
	if query != nil {
		base.Filter = query.Filter
		base.Sorts = query.Sorts
		if query.PageSize > 0 {
			base.PageSize = query.PageSize
		}
	}

	var pages []notionapi.Page
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "notion: query %s", dbID)
		}
		req := base
		resp, err := c.QueryDatabase(ctx, dbID, &req)
		if err != nil {
			return nil, eris.Wrapf(err, "notion: query %s after %d pages", dbID, len(pages))
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		base.StartCursor = resp.NextCursor
	}
}

// ActiveQuery selects the pages whose activeProp checkbox is ticked, sorted
// ascending on the orderProp number. Question databases are read this way so
// retired questions stay in Notion without reaching the bank.
func ActiveQuery(activeProp, orderProp string) *notionapi.DatabaseQueryRequest {
	return &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: activeProp,
			Checkbox: &notionapi.CheckboxFilterCondition{Equals: true},
		},
		Sorts: []notionapi.SortObject{
			{Property: orderProp, Direction: notionapi.SortOrderASC},
		},
	}
}

// QueryActive returns every active page of dbID in display order.
func QueryActive(ctx context.Context, c Client, dbID, activeProp, orderProp string) ([]notionapi.Page, error) {
	pages, err := QueryAll(ctx, c, dbID, ActiveQuery(activeProp, orderProp))
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query active %s", activeProp)
	}
	return pages, nil
}
