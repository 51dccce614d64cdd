// Package export defines the destination interface for synchronized
// transactions.
package export

import (
	"context"

	"github.com/sakost/zenmoney-api/pkg/models"
)

// Exporter persists a batch of transactions pulled from the diff endpoint.
// A transaction may reappear across syncs when it changed server-side;
// implementations treat the id as the identity and upsert.
type Exporter interface {
	Export(ctx context.Context, transactions []models.Transaction) error
	Close() error
}
