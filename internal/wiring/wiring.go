// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/lpkg/internal/adapters/config"
	_ "go.trai.ch/lpkg/internal/adapters/fetch"
	_ "go.trai.ch/lpkg/internal/adapters/fs"
	_ "go.trai.ch/lpkg/internal/adapters/logger"
	_ "go.trai.ch/lpkg/internal/adapters/telemetry/progrock"
	// Register app nodes.
	_ "go.trai.ch/lpkg/internal/app"
)
