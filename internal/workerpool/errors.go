package workerpool

import "errors"

// ErrPoolClosed reports a permanent condition: the pool has been stopped and
// will accept no further work.
var ErrPoolClosed = errors.New("worker pool closed")
