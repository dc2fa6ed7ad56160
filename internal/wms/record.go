// Package wms looks up transfer records in the warehouse-management system.
package wms

import (
	"context"
	"errors"
	"strconv"
)

// Transfer states.
const (
	StateAwaitingQA = "awaiting qa"
	StateCompleted  = "completed"
	StateFlagged    = "flagged"
)

// ErrNotFound is returned when no transfer matches the key.
var ErrNotFound = errors.New("wms: transfer not found")

// Dimensions are the expected outer dimensions in the record's length unit.
type Dimensions struct {
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Depth  float64 `json:"depth"`
}

// TransferRecord is one warehouse transfer awaiting or past QA.
type TransferRecord struct {
	TransferID int64      `json:"transfer_id"`
	Name       string     `json:"name"`
	SKU        string     `json:"sku"`
	State      string     `json:"state"`
	BarcodeID  string     `json:"barcode_id"`
	Metrics    []string   `json:"metrics"` // length unit, weight unit
	Dimensions Dimensions `json:"dimensions"`
	Weight     float64    `json:"weight"`
	Quantity   int        `json:"quantity"`
}

// Key returns the transfer id as a lookup key.
func (r *TransferRecord) Key() string {
	return strconv.FormatInt(r.TransferID, 10)
}

// LengthUnit returns the unit of the dimensions, "cm" when unspecified.
func (r *TransferRecord) LengthUnit() string {
	if len(r.Metrics) > 0 && r.Metrics[0] != "" {
		return r.Metrics[0]
	}
	return "cm"
}

// WeightUnit returns the unit of the weight, "g" when unspecified.
func (r *TransferRecord) WeightUnit() string {
	if len(r.Metrics) > 1 && r.Metrics[1] != "" {
		return r.Metrics[1]
	}
	return "g"
}

// Provider resolves a transfer id or a barcode payload to a record.
type Provider interface {
	Lookup(ctx context.Context, key string) (*TransferRecord, error)
}
