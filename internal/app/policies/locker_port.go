package policies

import "context"

// Locker serialises work on a key across the process or the cluster.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
