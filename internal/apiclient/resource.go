package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Page is one page of a list response.
type Page[T any] struct {
	Items      []T
	Page       int
	TotalPages int
}

type listEnvelope[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

// DecodePage accepts {"data": [...], "meta": {...}} or a bare array.
func DecodePage[T any](body []byte) (Page[T], error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Page[T]{}, err
		}
		return Page[T]{Items: items, Page: 1, TotalPages: 1}, nil
	}

	var env listEnvelope[T]
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Page[T]{}, err
	}
	p := Page[T]{Items: env.Data, Page: env.Meta.Page, TotalPages: env.Meta.TotalPages}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.TotalPages < p.Page {
		p.TotalPages = p.Page
	}
	return p, nil
}

// Resource is a REST collection at path.
type Resource[T any] struct {
	api  Caller
	path string
}

// NewResource binds a collection path to a caller.
func NewResource[T any](api Caller, path string) Resource[T] {
	return Resource[T]{api: api, path: path}
}

// Path returns the collection path.
func (r Resource[T]) Path() string {
	return r.path
}

func (r Resource[T]) item(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// List fetches one page. query is passed through (page, per_page, filters).
func (r Resource[T]) List(ctx context.Context, query url.Values) (Page[T], error) {
	var raw json.RawMessage
	if err := r.api.Call(ctx, http.MethodGet, r.path, query, nil, &raw); err != nil {
		return Page[T]{}, err
	}
	if len(raw) == 0 {
		return Page[T]{Page: 1, TotalPages: 1}, nil
	}
	p, err := DecodePage[T](raw)
	if err != nil {
		return Page[T]{}, fmt.Errorf("decode %s: %w", r.path, err)
	}
	return p, nil
}

// maxPages bounds All against a backend that never reports a last page.
const maxPages = 100

// All follows pages until the last one.
func (r Resource[T]) All(ctx context.Context, query url.Values) ([]T, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}

	var out []T
	for page := 1; page <= maxPages; page++ {
		q.Set("page", strconv.Itoa(page))
		p, err := r.List(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Items...)
		if p.Page >= p.TotalPages {
			break
		}
	}
	return out, nil
}

func (r Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	err := r.api.Call(ctx, http.MethodGet, r.item(id), nil, nil, &v)
	return v, err
}

func (r Resource[T]) Create(ctx context.Context, in T) (T, error) {
	var v T
	err := r.api.Call(ctx, http.MethodPost, r.path, nil, in, &v)
	return v, err
}

func (r Resource[T]) Update(ctx context.Context, id string, in T) (T, error) {
	var v T
	err := r.api.Call(ctx, http.MethodPut, r.item(id), nil, in, &v)
	return v, err
}

func (r Resource[T]) Delete(ctx context.Context, id string) error {
	return r.api.Call(ctx, http.MethodDelete, r.item(id), nil, nil, nil)
}
