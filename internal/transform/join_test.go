package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReformatTimestamp(t *testing.T) {
	got, err := ReformatTimestamp("05-03-2021 14:30:00")
	require.NoError(t, err)
	assert.Equal(t, "2021-03-05 14:30:00", got)
}

func TestReformatTimestampRejectsWrongFormat(t *testing.T) {
	_, err := ReformatTimestamp("2021-03-05 14:30:00")
	assert.Error(t, err)
}

func TestJoinMatchesMessagesToOwningDevice(t *testing.T) {
	devices := []Device{
		{ID: "A", RegistryCode: "BR1", Name: "Boat1"},
		{ID: "C", RegistryCode: "BR3", Name: "Boat3"},
	}
	messages := []Message{
		{DeviceID: "A", Course: 90, Timestamp: "01-01-2021 10:00:00", Lat: -3.1, Lon: -60.0, MessageID: "m1"},
		{DeviceID: "B", Course: 10, Timestamp: "01-01-2021 11:00:00", Lat: -3.2, Lon: -60.1, MessageID: "m2"},
		{DeviceID: "A", Course: 95, Timestamp: "01-01-2021 12:00:00", Lat: -3.3, Lon: -60.2, MessageID: "m3"},
	}

	records, stats, err := Join(devices, messages)
	require.NoError(t, err)

	require.Len(t, records, 2, "message for absent device B is dropped")
	assert.Equal(t, "m1", records[0].MessageID)
	assert.Equal(t, "m3", records[1].MessageID)
	for _, r := range records {
		assert.Equal(t, "A", r.DeviceID)
		assert.Equal(t, "BR1", r.RegistryCode)
		assert.Equal(t, "Boat1", r.Name)
	}
	assert.Equal(t, "2021-01-01 10:00:00", records[0].Timestamp)

	assert.Equal(t, Stats{Devices: 2, Messages: 3, Joined: 2, Orphans: 1}, stats)
}

func TestJoinDeviceWithoutMessagesContributesNothing(t *testing.T) {
	devices := []Device{{ID: "A", RegistryCode: "BR1", Name: "Boat1"}}
	records, stats, err := Join(devices, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, stats.Orphans)
}

func TestJoinBadTimestampIsFatal(t *testing.T) {
	devices := []Device{{ID: "A", RegistryCode: "BR1", Name: "Boat1"}}
	messages := []Message{{DeviceID: "A", Timestamp: "not a date", MessageID: "m1"}}

	_, _, err := Join(devices, messages)
	var perr *TimestampParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "m1", perr.MessageID)
	assert.Equal(t, "not a date", perr.Value)
}

func TestJoinCarriesOptionalSpeed(t *testing.T) {
	speed := 4.5
	devices := []Device{{ID: "A", RegistryCode: "BR1", Name: "Boat1"}}
	messages := []Message{
		{DeviceID: "A", Timestamp: "01-01-2021 10:00:00", MessageID: "m1", Speed: &speed},
		{DeviceID: "A", Timestamp: "01-01-2021 11:00:00", MessageID: "m2"},
	}

	records, _, err := Join(devices, messages)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].Speed)
	assert.Equal(t, 4.5, *records[0].Speed)
	assert.Nil(t, records[1].Speed, "older schema versions have no speed")
}

func TestGroupByDayPartitionsEveryRecordExactlyOnce(t *testing.T) {
	records := []Record{
		{MessageID: "m1", Timestamp: "2021-01-01 10:00:00"},
		{MessageID: "m2", Timestamp: "2021-01-01 23:59:59"},
		{MessageID: "m3", Timestamp: "2021-06-15 00:00:00"},
	}

	buckets := GroupByDay(records)
	require.Len(t, buckets, 2)
	assert.Len(t, buckets["2021-01-01"], 2)
	assert.Len(t, buckets["2021-06-15"], 1)

	total := 0
	for _, b := range buckets {
		total += len(b)
	}
	assert.Equal(t, len(records), total)
}

func TestDaysCoversWholeYear(t *testing.T) {
	days := Days(2021, time.Time{})
	require.Len(t, days, 365)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), days[0])
	assert.Equal(t, time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC), days[len(days)-1])

	assert.Len(t, Days(2020, time.Time{}), 366, "leap year")
}

func TestDaysCutoffIsInclusive(t *testing.T) {
	cutoff := time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)
	days := Days(2021, cutoff)
	require.Len(t, days, 15)
	assert.Equal(t, cutoff, days[len(days)-1])
}

// Mirrors the end-to-end scenario: one known device, one orphan message,
// a whole year of buckets with a single populated day.
func TestYearScenario(t *testing.T) {
	devices := []Device{{ID: "A", RegistryCode: "BR1", Name: "Boat1"}}
	messages := []Message{
		{DeviceID: "A", Course: 90, Timestamp: "01-01-2021 10:00:00", Lat: -3.1, Lon: -60.0, MessageID: "m1"},
		{DeviceID: "B", Course: 45, Timestamp: "02-01-2021 10:00:00", Lat: -3.2, Lon: -60.1, MessageID: "m2"},
	}

	records, stats, err := Join(devices, messages)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Joined)
	assert.Equal(t, 1, stats.Orphans)

	buckets := GroupByDay(records)
	populated := 0
	for _, day := range Days(2021, time.Time{}) {
		b := buckets[day.Format("2006-01-02")]
		if len(b) > 0 {
			populated++
			assert.Equal(t, "2021-01-01", day.Format("2006-01-02"))
			assert.Equal(t, "m1", b[0].MessageID)
		}
	}
	assert.Equal(t, 1, populated, "all other days of 2021 are empty buckets")
}
