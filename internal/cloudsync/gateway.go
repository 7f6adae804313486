package cloudsync

import (
	"context"

	"github.com/MrJamesThe3rd/finsync/internal/remote"
)

//go:generate mockgen -source=gateway.go -destination=gateway_mock.go -package=cloudsync

// Gateway reads and writes rows of the remote tables. Implementations must
// scope Select to userID and treat an Upsert of zero rows as a no-op.
type Gateway interface {
	Select(ctx context.Context, table remote.Table, userID string) ([]remote.Row, error)
	Upsert(ctx context.Context, table remote.Table, rows []remote.Row, onConflict string) error
}

// Requester is anything that can ask for a debounced push.
type Requester interface {
	RequestSync()
}
