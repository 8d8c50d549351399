// Package service contains typed wrappers over the petflix REST endpoints.
package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/and161185/petflix/internal/apiclient"
	"github.com/and161185/petflix/internal/errs"
)

const apiPrefix = "/api/v1"

// Requester is the subset of *apiclient.Client used by services.
type Requester interface {
	Get(ctx context.Context, path string, out any, opts ...apiclient.CallOption) error
	Post(ctx context.Context, path string, body, out any, opts ...apiclient.CallOption) error
	Put(ctx context.Context, path string, body, out any, opts ...apiclient.CallOption) error
	Delete(ctx context.Context, path string, out any, opts ...apiclient.CallOption) error
}

var _ Requester = (*apiclient.Client)(nil)

// Page selects a window of a listing. Zero values are omitted from the query.
type Page struct {
	Page  int
	Limit int
}

func (p Page) values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	return v
}

// endpoint joins path segments under the API prefix, escaping each one.
func endpoint(segments ...string) string {
	var b strings.Builder
	b.WriteString(apiPrefix)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty %s id", errs.ErrValidation, kind)
	}
	return nil
}
