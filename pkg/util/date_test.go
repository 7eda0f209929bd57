package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	assert.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	assert.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestParseTimeRejectsAndMillis(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-5", "0"} {
		_, ok := ParseTime(s)
		assert.False(t, ok, s)
	}
	got, ok := ParseTime("1700000000123")
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000123), got.UnixMilli())

	got, ok = ParseTime("2024-10-10T10:10:10.5Z")
	assert.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, time.Duration(got.Nanosecond()))
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "0s", HumanDuration(0))
	assert.Equal(t, "45s", HumanDuration(45*time.Second))
	assert.Equal(t, "2m5s", HumanDuration(125*time.Second))
	assert.Equal(t, "3h12m", HumanDuration(3*time.Hour+12*time.Minute+9*time.Second))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("7", 1))
	assert.Equal(t, 1, ParseIntDefault("x", 1))
	assert.Equal(t, "So11..1112", ShortAddr("So11111111111111111111111111111111111111112"))
	assert.Equal(t, "short", ShortAddr("short"))
}
