package fmc

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/martinsuchenak/fmcsweep/internal/model"
)

// MaxPageSize is the largest page the controller will return
const MaxPageSize = 1000

// Page is one page of a list query
type Page struct {
	Items []model.Object
	Pages int
	Count int
}

type listResponse struct {
	Items  []model.Object `json:"items"`
	Paging struct {
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
		Count  int `json:"count"`
		Pages  int `json:"pages"`
	} `json:"paging"`
}

// ListPage fetches one page of objects. limit is clamped to [1, MaxPageSize].
// unusedOnly asks the controller for unreferenced objects only.
func (c *Client) ListPage(ctx context.Context, category model.Category, offset, limit int, unusedOnly bool) (Page, error) {
	base, err := c.domainPath()
	if err != nil {
		return Page{}, err
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	if unusedOnly {
		query.Set("filter", "unusedOnly:true")
		query.Set("expanded", "true")
	}

	var resp listResponse
	if err := c.call(ctx, http.MethodGet, base+string(category), query, nil, &resp); err != nil {
		return Page{}, err
	}
	return Page{Items: resp.Items, Pages: resp.Paging.Pages, Count: resp.Paging.Count}, nil
}

// FetchNetwork returns the full detail of a Network, Range or Host
func (c *Client) FetchNetwork(ctx context.Context, category model.Category, id string) (*model.NetworkObject, error) {
	base, err := c.domainPath()
	if err != nil {
		return nil, err
	}
	var obj model.NetworkObject
	if err := c.call(ctx, http.MethodGet, base+string(category)+"/"+url.PathEscape(id), nil, nil, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// FetchGroup returns the full detail of a network group
func (c *Client) FetchGroup(ctx context.Context, id string) (*model.GroupObject, error) {
	base, err := c.domainPath()
	if err != nil {
		return nil, err
	}
	var group model.GroupObject
	if err := c.call(ctx, http.MethodGet, base+string(model.NetworkGroups)+"/"+url.PathEscape(id), nil, nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// CreateNetwork creates a Network, Range or Host from a backup record
func (c *Client) CreateNetwork(ctx context.Context, category model.Category, rec model.FlatRecord) (*model.NetworkObject, error) {
	base, err := c.domainPath()
	if err != nil {
		return nil, err
	}
	var created model.NetworkObject
	if err := c.call(ctx, http.MethodPost, base+string(category), nil, rec, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateGroup creates a network group. Every member must already exist.
func (c *Client) CreateGroup(ctx context.Context, payload model.GroupPayload) (*model.GroupObject, error) {
	base, err := c.domainPath()
	if err != nil {
		return nil, err
	}
	if payload.Type == "" {
		payload.Type = model.TypeNetworkGroup
	}
	var created model.GroupObject
	if err := c.call(ctx, http.MethodPost, base+string(model.NetworkGroups), nil, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Delete removes one object
func (c *Client) Delete(ctx context.Context, category model.Category, id string) error {
	base, err := c.domainPath()
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodDelete, base+string(category)+"/"+url.PathEscape(id), nil, nil, nil)
}
