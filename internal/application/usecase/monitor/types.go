package monitor

import "polyticker/internal/application/port"

type (
	TradeFeed  = port.TradeFeed
	Repository = port.Repository
)

// Insert results reported to ServiceDeps.OnInsert.
const (
	ResultOK       = "ok"
	ResultMismatch = "mismatch"
	ResultError    = "error"
)
