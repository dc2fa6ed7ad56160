package wms

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Static serves records from memory.
type Static struct {
	mu      sync.RWMutex
	records map[string]TransferRecord
}

// NewStatic creates a provider over records keyed by transfer id or barcode
// payload.
func NewStatic(records map[string]TransferRecord) *Static {
	s := &Static{records: make(map[string]TransferRecord, len(records))}
	for k, r := range records {
		s.records[k] = r
	}
	return s
}

// Lookup returns a copy of the record stored under key. Surrounding
// whitespace in key is ignored.
func (s *Static) Lookup(ctx context.Context, key string) (*TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	r, ok := s.records[strings.TrimSpace(key)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	r.Metrics = append([]string(nil), r.Metrics...)
	return &r, nil
}

// Put stores or replaces the record under key.
func (s *Static) Put(key string, r TransferRecord) {
	s.mu.Lock()
	s.records[key] = r
	s.mu.Unlock()
}

// Keys returns all lookup keys in sorted order.
func (s *Static) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DemoBarcode is the payload printed on the demo product labels.
const DemoBarcode = "https://qrco.de/bc5V4T"

// Demo returns the station's built-in demonstration records.
func Demo() *Static {
	units := []string{"cm", "g"}
	return NewStatic(map[string]TransferRecord{
		"334456": {
			TransferID: 334456, Name: "Oak-D camera", SKU: DemoBarcode, BarcodeID: DemoBarcode,
			State: StateAwaitingQA, Metrics: units,
			Dimensions: Dimensions{Width: 11, Length: 20, Depth: 7.7},
			Weight:     500, Quantity: 40,
		},
		"23456": {
			TransferID: 23456, Name: "Oak-D", SKU: DemoBarcode, BarcodeID: DemoBarcode,
			State: StateCompleted, Metrics: units,
			Dimensions: Dimensions{Width: 2.3, Length: 5.5, Depth: 4.7},
			Weight:     750, Quantity: 18,
		},
		"98765": {
			TransferID: 98765, Name: "AI Kit", SKU: DemoBarcode, BarcodeID: DemoBarcode,
			State: StateFlagged, Metrics: units,
			Dimensions: Dimensions{Width: 7, Length: 1.5, Depth: 1.7},
			Weight:     75, Quantity: 23,
		},
		DemoBarcode: {
			TransferID: 12345, Name: "Oak-D camera", SKU: DemoBarcode, BarcodeID: DemoBarcode,
			State: StateAwaitingQA, Metrics: units,
			Dimensions: Dimensions{Width: 11, Length: 20, Depth: 7.7},
			Weight:     500, Quantity: 40,
		},
	})
}
