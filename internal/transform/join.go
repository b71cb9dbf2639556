package transform

import (
	"time"
)

const (
	wireTimeLayout = "02-01-2006 15:04:05"
	outTimeLayout  = "2006-01-02 15:04:05"
	dayLayout      = "2006-01-02"
)

// Stats summarizes one join pass.
type Stats struct {
	Devices  int
	Messages int
	Joined   int
	Orphans  int
}

// ReformatTimestamp converts "DD-MM-YYYY HH:MM:SS" to "YYYY-MM-DD HH:MM:SS".
func ReformatTimestamp(s string) (string, error) {
	t, err := time.Parse(wireTimeLayout, s)
	if err != nil {
		return "", err
	}
	return t.Format(outTimeLayout), nil
}

// Join inner-joins messages to their owning device on the device ID.
// Output order is device-major, message-arrival order within each device,
// matching the merged stream downstream consumers already expect. A message
// whose device ID matches no device is silently dropped and counted; a
// device with no messages contributes nothing. Timestamps are reformatted
// here, before any day grouping, and any unparseable timestamp aborts the
// whole join.
func Join(devices []Device, messages []Message) ([]Record, Stats, error) {
	stats := Stats{Devices: len(devices), Messages: len(messages)}

	// Index message positions by device ID so the scan stays linear.
	byDevice := make(map[string][]int, len(devices))
	for i, m := range messages {
		byDevice[m.DeviceID] = append(byDevice[m.DeviceID], i)
	}

	var joined []Record
	for _, d := range devices {
		for _, i := range byDevice[d.ID] {
			m := messages[i]
			ts, err := ReformatTimestamp(m.Timestamp)
			if err != nil {
				return nil, stats, &TimestampParseError{MessageID: m.MessageID, Value: m.Timestamp, Err: err}
			}
			joined = append(joined, Record{
				DeviceID:     m.DeviceID,
				Course:       m.Course,
				Timestamp:    ts,
				Lat:          m.Lat,
				Lon:          m.Lon,
				MessageID:    m.MessageID,
				Speed:        m.Speed,
				RegistryCode: d.RegistryCode,
				Name:         d.Name,
			})
		}
	}
	stats.Joined = len(joined)
	stats.Orphans = len(messages) - len(joined)
	return joined, stats, nil
}

// GroupByDay buckets joined records by the date component of their
// already-reformatted timestamp in a single pass. Keys are "YYYY-MM-DD".
func GroupByDay(records []Record) map[string][]Record {
	buckets := make(map[string][]Record)
	for _, r := range records {
		day := r.Timestamp
		if len(day) > len(dayLayout) {
			day = day[:len(dayLayout)]
		}
		buckets[day] = append(buckets[day], r)
	}
	return buckets
}

// Days yields every calendar day from Jan 1 to Dec 31 of year inclusive.
// A non-zero cutoff truncates the sequence after that day (inclusive),
// for resumable historical backfills.
func Days(year int, cutoff time.Time) []time.Time {
	var days []time.Time
	for d := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		if !cutoff.IsZero() && d.After(cutoff) {
			break
		}
		days = append(days, d)
	}
	return days
}
