package retention

import (
	"testing"
	"time"

	"github.com/bigkaa/goartstore/filedrop/internal/domain/model"
)

func TestComputeExpiry_ZeroIsNever(t *testing.T) {
	now := time.Now()
	for _, n := range []int{0, -1, -100} {
		exp, err := ComputeExpiry(n, "days", now)
		if err != nil {
			t.Fatalf("retention=%d: неожиданная ошибка %v", n, err)
		}
		if !exp.IsNever() {
			t.Errorf("retention=%d: ожидался бессрочный срок, получено %s", n, exp)
		}
	}
}

func TestComputeExpiry_Units(t *testing.T) {
	now := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		unit string
		n    int
		want time.Time
	}{
		{"seconds", 30, now.Add(30 * time.Second)},
		{"minutes", 5, now.Add(5 * time.Minute)},
		{"hour", 2, now.Add(2 * time.Hour)},
		{"days", 3, now.AddDate(0, 0, 3)},
		{"", 1, now.AddDate(0, 0, 1)},
		{"weeks", 2, now.AddDate(0, 0, 14)},
		{"M", 1, now.AddDate(0, 1, 0)},
		{"years", 1, now.AddDate(1, 0, 0)},
	}

	for _, tt := range tests {
		exp, err := ComputeExpiry(tt.n, tt.unit, now)
		if err != nil {
			t.Fatalf("unit=%q: %v", tt.unit, err)
		}
		got, ok := exp.Time()
		if !ok {
			t.Fatalf("unit=%q: срок не задан", tt.unit)
		}
		if !got.Equal(tt.want) {
			t.Errorf("unit=%q: ожидалось %s, получено %s", tt.unit, tt.want, got)
		}
	}
}

func TestComputeExpiry_UnknownUnit(t *testing.T) {
	if _, err := ComputeExpiry(1, "fortnights", time.Now()); err == nil {
		t.Fatal("ожидалась ошибка для неизвестной единицы")
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now()

	if IsExpired(model.Never, now) {
		t.Error("бессрочная запись не должна истекать")
	}
	if IsExpired(model.Never, now.AddDate(100, 0, 0)) {
		t.Error("бессрочная запись не должна истекать и через 100 лет")
	}
	if !IsExpired(model.ExpiresAt(now.Add(-time.Second)), now) {
		t.Error("прошедший срок должен считаться истёкшим")
	}
	if IsExpired(model.ExpiresAt(now.Add(time.Hour)), now) {
		t.Error("будущий срок не должен считаться истёкшим")
	}
	if IsExpired(model.ExpiresAt(now), now) {
		t.Error("expires == now ещё не истёк (строгое сравнение)")
	}
}

func TestComputeExpiry_LargeClockUnits(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		n    int
		unit string
		want time.Time
	}{
		{3_000_000, "hours", now.AddDate(0, 0, 125_000)},
		{200_000_000, "minutes", now.AddDate(0, 0, 138_888).Add(1280 * time.Minute)},
		{10_000_000_000, "seconds", now.AddDate(0, 0, 115_740).Add(64_000 * time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			exp, err := ComputeExpiry(tt.n, tt.unit, now)
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			at, ok := exp.Time()
			if !ok || !at.Equal(tt.want) {
				t.Fatalf("ожидалось %s, получено %s", tt.want, exp)
			}
			if IsExpired(exp, now) {
				t.Error("запись с большим сроком не должна считаться истёкшей")
			}
		})
	}
}
