package utils

import "errors"

// Common application errors used across services. Configuration errors are
// terminal and never retried; cache-empty is distinguishable from upstream
// failure so callers can tell "nothing cached" apart from "upstream down".
var (
	ErrConnectionNotConfigured = errors.New("CONNECTION_NOT_CONFIGURED")
	ErrInvalidMarketplace      = errors.New("INVALID_MARKETPLACE")
	ErrInvalidKeyMaterial      = errors.New("INVALID_KEY_MATERIAL")
	ErrCacheEmpty              = errors.New("CACHE_EMPTY")
	ErrCategoryNotFound        = errors.New("CATEGORY_NOT_FOUND")
	ErrNoLeafDescendant        = errors.New("NO_LEAF_DESCENDANT")
	ErrNoAttributes            = errors.New("NO_ATTRIBUTES")
	ErrSyncAlreadyRunning      = errors.New("SYNC_ALREADY_RUNNING")
)
