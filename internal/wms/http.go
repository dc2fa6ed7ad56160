package wms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// DefaultTimeout bounds a single remote lookup.
const DefaultTimeout = 3 * time.Second

// HTTPProvider queries a WMS over HTTP.
type HTTPProvider struct {
	base   string
	client *http.Client
}

// NewHTTPProvider creates a provider for the service at base. A non-positive
// timeout uses DefaultTimeout.
func NewHTTPProvider(base string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProvider{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Lookup fetches GET {base}/transfers/{key}.
func (p *HTTPProvider) Lookup(ctx context.Context, key string) (*TransferRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNotFound
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/transfers/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, fmt.Errorf("wms request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wms lookup %q: %w", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("wms lookup %q: %s: %s", key, resp.Status, strings.TrimSpace(string(body)))
	}

	var rec TransferRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode transfer %q: %w", key, err)
	}
	return &rec, nil
}

// NewHandler serves any provider over HTTP:
//
//	GET /transfers/{key}  the record as JSON, 404 when unknown
//	GET /healthz          "ok"
//
// Keys may contain escaped slashes, as barcode payloads often are URLs.
func NewHandler(p Provider) *mux.Router {
	r := mux.NewRouter().UseEncodedPath()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)
	r.HandleFunc("/transfers/{key}", func(w http.ResponseWriter, r *http.Request) {
		key, err := url.PathUnescape(mux.Vars(r)["key"])
		if err != nil {
			http.Error(w, "bad transfer key", http.StatusBadRequest)
			return
		}
		rec, err := p.Lookup(r.Context(), key)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "transfer not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec)
	}).Methods(http.MethodGet)
	return r
}
