package instrument

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestJulianDayRoundTrip(t *testing.T) {
	jd := JD(2014, time.February, 14)
	if jd != 2456703 {
		t.Fatalf("JD(2014-02-14) = %d, want 2456703", jd)
	}
	got := JDToTime(jd)
	want := time.Date(2014, time.February, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("JDToTime = %v, want %v", got, want)
	}
	if TJD(jd) != 16703 {
		t.Fatalf("TJD = %d, want 16703", TJD(jd))
	}
}

func TestJDFromTimeUsesUTC(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2014, time.February, 14, 22, 0, 0, 0, loc)
	if got := JDFromTime(ts); got != JD(2014, time.February, 15) {
		t.Fatalf("JDFromTime = %d, want next day", got)
	}
}

func TestBookKey(t *testing.T) {
	jd := JD(2014, time.March, 1)
	k := BookKey(7, jd)
	if k>>16 != 7 {
		t.Fatalf("contract bits = %d, want 7", k>>16)
	}
	if int32(k&JDMask) != TJD(jd) {
		t.Fatalf("day bits = %d, want %d", k&JDMask, TJD(jd))
	}
	if BookKey(7, jd+1) <= k {
		t.Fatal("later settlement day must sort after earlier one")
	}
}

func TestValidSettlDay(t *testing.T) {
	jd := JD(2014, time.March, 1)
	if !ValidSettlDay(jd) {
		t.Fatalf("%d should be valid", jd)
	}
	if !ValidSettlDay(tjdOffset) || !ValidSettlDay(tjdOffset+JDMask) {
		t.Fatal("range bounds should be valid")
	}
	if ValidSettlDay(tjdOffset-1) || ValidSettlDay(tjdOffset+JDMask+1) {
		t.Fatal("days outside the key range should be invalid")
	}
	if BookKey(7, jd) != BookKey(7, jd+JDMask+1) {
		t.Fatal("days a key range apart should share a book key")
	}
}

func TestContractPriceTicks(t *testing.T) {
	c := &Contract{Mnem: "EURUSD", TickSize: decimal.RequireFromString("0.0001"), PriceDp: 4}

	if p := c.Price(12345); !p.Equal(decimal.RequireFromString("1.2345")) {
		t.Fatalf("Price = %s", p)
	}
	ticks, err := c.Ticks(decimal.RequireFromString("1.2345"))
	if err != nil {
		t.Fatal(err)
	}
	if ticks != 12345 {
		t.Fatalf("Ticks = %d", ticks)
	}
	if _, err := c.Ticks(decimal.RequireFromString("1.23455")); err == nil {
		t.Fatal("expected error for off-tick price")
	}
}

func TestContractValidLots(t *testing.T) {
	c := &Contract{MinLots: 1, MaxLots: 10}
	for lots, want := range map[int64]bool{0: false, 1: true, 10: true, 11: false, -1: false} {
		if got := c.ValidLots(lots); got != want {
			t.Errorf("ValidLots(%d) = %v, want %v", lots, got, want)
		}
	}
	unbounded := &Contract{}
	if !unbounded.ValidLots(1 << 40) {
		t.Error("zero MaxLots should not bound lots")
	}
}
