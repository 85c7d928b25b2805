package humanfmt

import (
	"testing"
	"time"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0 Bytes"},
		{1, "1 Byte"},
		{999, "999 Bytes"},
		{1000, "1.0 kB"},
		{1500, "1.5 kB"},
		{1000000, "1.0 MB"},
		{2345678, "2.3 MB"},
		{1000000000, "1.0 GB"},
		{1500000000000, "1.5 TB"},
		{3000000000000000, "3.0 PB"},
		{-1500, "-1.5 kB"},
	}

	for _, tt := range tests {
		if got := Bytes(tt.input); got != tt.want {
			t.Errorf("Bytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIntComma(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0"},
		{12, "12"},
		{999, "999"},
		{1000, "1,000"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
		{-123, "-123"},
	}

	for _, tt := range tests {
		if got := IntComma(tt.input); got != tt.want {
			t.Errorf("IntComma(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{500 * time.Microsecond, "500µs"},
		{1500 * time.Microsecond, "1.5ms"},
		{1230 * time.Millisecond, "1.23s"},
		{90 * time.Second, "1m30s"},
		{60 * time.Second, "1m"},
		{8100 * time.Second, "2h15m"},
	}

	for _, tt := range tests {
		if got := Duration(tt.input); got != tt.want {
			t.Errorf("Duration(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDate(t *testing.T) {
	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  string
	}{
		{"2020-01-01T11:55:00.000000Z", "5 minutes ago"},
		{"2020-01-01T11:59:59.500000Z", "now"},
		{"2020-01-01T11:59:30.000000Z", "30 seconds ago"},
		{"2020-01-01T11:00:00.000000Z", "an hour ago"},
		{"2020-01-01T02:00:00.000000Z", "10 hours ago"},
		{"2020-01-01T12:01:00.000000Z", "a minute from now"},
		{"2019-12-16T10:01:44.021334Z", "2019-12-16"},
		{"2020-01-02T00:00:00.000000Z", "2020-01-02"},
		{"not a date", "not a date"},
	}

	for _, tt := range tests {
		if got := Date(tt.input, now); got != tt.want {
			t.Errorf("Date(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
