package models

import (
	"time"
)

// BackendType identifies the automation engine behind a station.
type BackendType string

const (
	// BackendLiquidsoap is the only backend with a command socket this
	// service can drive.
	BackendLiquidsoap BackendType = "liquidsoap"
	BackendNone       BackendType = "none"
)

// Station is the unit of isolation: queue entries and engine connections
// are always scoped to exactly one station.
type Station struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"uniqueIndex"`
	Description string `gorm:"type:text"`
	Timezone    string `gorm:"type:varchar(32)"`

	BackendType BackendType `gorm:"type:varchar(32)"`
	// EngineAddr is the engine command socket address, either host:port or
	// a unix socket path.
	EngineAddr string
	// IsRunning reflects the supervisor's view of the engine process. The
	// supervisor itself is outside this service; it flips this flag.
	IsRunning bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StationMedia is an audio asset playable by the station's engine.
type StationMedia struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	StationID string `gorm:"type:uuid;index"`
	// UniqueID is the content-addressable identifier callers use to refer
	// to the media item.
	UniqueID  string `gorm:"index"`
	Title     string `gorm:"index"`
	Artist    string `gorm:"index"`
	Album     string
	Duration  time.Duration
	Path      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QueueEntry is the durable record of a media item pending playback.
//
// Undispatched entries for a station are served in (CuedAt, InsertionSeq)
// ascending order. InsertionSeq is a per-station counter that breaks ties
// when two entries are cued within timestamp resolution.
type QueueEntry struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	StationID string `gorm:"type:uuid;index:idx_queue_station_pending"`
	MediaID   string `gorm:"type:uuid;index"`
	// MediaPath is captured at creation so the engine command can be
	// rebuilt without re-resolving the media item.
	MediaPath    string
	CuedAt       time.Time `gorm:"index"`
	Dispatched   bool      `gorm:"index:idx_queue_station_pending"`
	InsertionSeq int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
