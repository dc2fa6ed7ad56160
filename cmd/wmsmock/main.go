// Command wmsmock serves transfer records over HTTP for testing the station's
// http WMS driver.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"qa-station/internal/logging"
	"qa-station/internal/wms"
)

func main() {
	addr := flag.String("addr", ":8089", "Listen address")
	records := flag.String("records", "", "JSON file of records keyed by transfer id or barcode (default: demo records)")
	flag.Parse()

	logger, err := logging.New(logging.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	provider := wms.Demo()
	if *records != "" {
		provider, err = load(*records)
		if err != nil {
			logger.Fatalw("load records", "path", *records, "error", err)
		}
	}

	router := wms.NewHandler(provider)
	router.Use(accessLog(logger.Named("http")))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Infow("serving transfers", "addr", *addr, "keys", provider.Keys())
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatalw("server stopped", "error", err)
	}
}

func load(path string) (*wms.Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recs map[string]wms.TransferRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return wms.NewStatic(recs), nil
}

func accessLog(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Infow("request", "method", r.Method, "path", r.URL.EscapedPath(), "took", time.Since(start))
		})
	}
}
