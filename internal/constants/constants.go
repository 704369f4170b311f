package constants

import "time"

const (
	DialTimeout     = 10 * time.Second
	ShutdownTimeout = 5 * time.Second
)

const (
	// EventBufferSize bounds the decoder→consumer handoff channel. The
	// decoder blocks on enqueueing once the consumer falls this far
	// behind.
	EventBufferSize = 512

	// LoaderWorkers caps concurrent replay file decodes during bulk
	// group loads.
	LoaderWorkers = 4
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	// MappingCacheFile is the name of the cached enum-table file, kept
	// next to the database.
	MappingCacheFile = "mappingInfo.json"
)
