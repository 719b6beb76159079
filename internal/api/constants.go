package api

import "time"

// Request limits.
const (
	// maxBodySize is the maximum accepted JSON request body (1 MB).
	maxBodySize = 1 << 20

	// shareRateInterval is the window for the public share rate limiter.
	shareRateInterval = time.Minute
)

// Cache-Control header values.
const (
	cacheOneWeek = "public, max-age=604800"
	cacheOneDay  = "public, max-age=86400"
	cacheNoStore = "no-cache"
)
