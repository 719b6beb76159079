package providers

import "time"

// shutdownTimeout bounds every handle's Shutdown. The HTTP server and
// the badger store both get this long to drain before teardown moves on.
const shutdownTimeout = 30 * time.Second
