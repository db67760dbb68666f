package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// fullListBatch is the page size GetFullList walks with.
const fullListBatch = 500

// Query holds the list/view options PocketBase understands.
type Query struct {
	Filter string
	Sort   string
	Expand []string
	Fields string
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.Filter != "" {
		v.Set("filter", q.Filter)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if len(q.Expand) > 0 {
		v.Set("expand", strings.Join(q.Expand, ","))
	}
	if q.Fields != "" {
		v.Set("fields", q.Fields)
	}
	return v
}

// ListMeta is the pagination envelope of a list answer.
type ListMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

type listResponse struct {
	ListMeta
	Items []json.RawMessage `json:"items"`
}

func recordsPath(collection string) string {
	return collectionPath(collection) + "/records"
}

func recordPath(collection, id string) string {
	return recordsPath(collection) + "/" + url.PathEscape(id)
}

// GetOne fetches a single record into out.
func (c *Client) GetOne(ctx context.Context, collection, id string, q Query, out any) error {
	return c.send(ctx, http.MethodGet, recordPath(collection, id), q.values(), nil, out)
}

// GetList fetches one page into out, which must point to a slice.
func (c *Client) GetList(ctx context.Context, collection string, page, perPage int, q Query, out any) (ListMeta, error) {
	resp, err := c.list(ctx, collection, page, perPage, q)
	if err != nil {
		return ListMeta{}, err
	}
	if err := decodeItems(resp.Items, out); err != nil {
		return ListMeta{}, err
	}
	return resp.ListMeta, nil
}

// GetFullList walks every page and decodes all items into out.
func (c *Client) GetFullList(ctx context.Context, collection string, q Query, out any) error {
	var items []json.RawMessage
	for page := 1; ; page++ {
		resp, err := c.list(ctx, collection, page, fullListBatch, q)
		if err != nil {
			return err
		}
		items = append(items, resp.Items...)
		if len(resp.Items) < fullListBatch {
			break
		}
	}
	return decodeItems(items, out)
}

// Create inserts a record and decodes the stored record into out.
func (c *Client) Create(ctx context.Context, collection string, body, out any) error {
	return c.send(ctx, http.MethodPost, recordsPath(collection), nil, body, out)
}

// Update patches a record and decodes the stored record into out.
func (c *Client) Update(ctx context.Context, collection, id string, body, out any) error {
	return c.send(ctx, http.MethodPatch, recordPath(collection, id), nil, body, out)
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.send(ctx, http.MethodDelete, recordPath(collection, id), nil, nil, nil)
}

func (c *Client) list(ctx context.Context, collection string, page, perPage int, q Query) (listResponse, error) {
	v := q.values()
	v.Set("page", strconv.Itoa(page))
	v.Set("perPage", strconv.Itoa(perPage))
	var resp listResponse
	if err := c.send(ctx, http.MethodGet, recordsPath(collection), v, nil, &resp); err != nil {
		return listResponse{}, err
	}
	return resp, nil
}

func decodeItems(items []json.RawMessage, out any) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(item)
	}
	buf.WriteByte(']')
	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return fmt.Errorf("decode items: %w", err)
	}
	return nil
}
