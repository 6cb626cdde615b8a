package tracking

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	naturaldate "github.com/tj/go-naturaldate"

	"mediapool.click/internal/sampler"
)

// Recorder persists trigger diagnostics into the tracking database. Record
// runs on the control thread via the module's record hook; it must never be
// wired to anything the audio thread calls.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a recorder over an open tracking database
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Hook returns the function to install with Module.SetRecordHook. Insert
// failures are logged and swallowed: diagnostics must never break playback.
func (r *Recorder) Hook() func(sampler.TriggerRecord) {
	return func(rec sampler.TriggerRecord) {
		if err := r.Record(rec); err != nil {
			slog.Warn("failed to record trigger event", "error", err)
		}
	}
}

// Record inserts one trigger record
func (r *Recorder) Record(rec sampler.TriggerRecord) error {
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("trigger_events")
	ib.Cols("timestamp", "step", "media_index", "duration", "play_style", "stolen", "dropped", "drop_reason")
	ib.Values(
		rec.At.Unix(),
		rec.Step,
		rec.MediaIndex,
		rec.Duration,
		rec.PlayStyle,
		boolToInt(rec.Stolen),
		boolToInt(rec.Dropped),
		rec.DropReason,
	)

	query, args := ib.Build()
	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert trigger event: %w", err)
	}
	return nil
}

// Event is one row read back from the tracking database
type Event struct {
	ID         int64
	Timestamp  time.Time
	Step       int32
	MediaIndex int32
	Duration   float64
	PlayStyle  string
	Stolen     bool
	Dropped    bool
	DropReason string
}

// QueryFilter narrows an event query
type QueryFilter struct {
	Since       *time.Time
	MediaIndex  *int32
	DroppedOnly bool
	Limit       int
}

// ParseSince turns a natural-language expression like "2 hours ago" into the
// filter's lower time bound
func (q *QueryFilter) ParseSince(expr string, now time.Time) error {
	t, err := naturaldate.Parse(expr, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return fmt.Errorf("failed to parse time expression %q: %w", expr, err)
	}
	q.Since = &t
	return nil
}

// Events reads trigger events newest-first under the given filter
func (r *Recorder) Events(filter QueryFilter) ([]Event, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "timestamp", "step", "media_index", "duration", "play_style", "stolen", "dropped", "drop_reason")
	sb.From("trigger_events")

	if filter.Since != nil {
		sb.Where(sb.GreaterEqualThan("timestamp", filter.Since.Unix()))
	}
	if filter.MediaIndex != nil {
		sb.Where(sb.Equal("media_index", *filter.MediaIndex))
	}
	if filter.DroppedOnly {
		sb.Where(sb.Equal("dropped", 1))
	}

	// Timestamps have one-second resolution; the row id orders inserts made
	// within the same second
	sb.OrderBy("timestamp DESC", "id DESC")
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	sb.Limit(limit)

	query, args := sb.Build()
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trigger events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		var stolen, dropped int
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Step, &e.MediaIndex, &e.Duration,
			&e.PlayStyle, &stolen, &dropped, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan trigger event: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		e.Stolen = stolen == 1
		e.Dropped = dropped == 1
		e.DropReason = reason.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// DropCount returns the number of dropped events recorded
func (r *Recorder) DropCount() (int64, error) {
	var count int64
	err := r.db.QueryRow("SELECT COUNT(*) FROM trigger_events WHERE dropped = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count dropped events: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
