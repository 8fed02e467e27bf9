// internal/api/types/response.go
package types

// PaginatedResponse is the envelope for paged collections: ledger history
// and marketplace listings. TotalCount is the full row count so clients
// can render page controls without a second request.
type PaginatedResponse[T any] struct {
	Data       []T   `json:"data"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	TotalCount int64 `json:"total_count"`
}
