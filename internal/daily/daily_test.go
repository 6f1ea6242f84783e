package daily

import (
	"testing"
	"time"
)

func TestDateKeyIsUTC(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	// 02:00 IST on the 19th is still the 18th in UTC
	ts := time.Date(2026, 10, 19, 2, 0, 0, 0, loc)
	if got := DateKey(ts); got != "2026-10-18" {
		t.Fatalf("DateKey = %s", got)
	}
}

func TestSeedStablePerDay(t *testing.T) {
	a := time.Date(2026, 10, 18, 1, 0, 0, 0, time.UTC)
	b := time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)
	c := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	if Seed(a, "s") != Seed(b, "s") {
		t.Fatal("seed changed within a day")
	}
	if Seed(a, "s") == Seed(c, "s") {
		t.Fatal("seed did not change across days")
	}
	if Seed(a, "s") == Seed(a, "other") {
		t.Fatal("salt ignored")
	}
	if Seed(a, "s") < 0 {
		t.Fatal("negative seed")
	}
}
