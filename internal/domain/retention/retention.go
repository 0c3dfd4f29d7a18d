// Пакет retention — политика срока хранения.
// Срок вычисляется при загрузке из настроек general.retention /
// general.retentionUnit и проверяется при чтении и при purge.
package retention

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/filedrop/internal/domain/model"
)

// Unit — единица срока хранения.
type Unit string

const (
	UnitSeconds Unit = "seconds"
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
	UnitWeeks   Unit = "weeks"
	UnitMonths  Unit = "months"
	UnitYears   Unit = "years"
)

// aliases — допустимые написания единиц (единственное число и сокращения).
var aliases = map[string]Unit{
	"s": UnitSeconds, "second": UnitSeconds, "seconds": UnitSeconds,
	"m": UnitMinutes, "minute": UnitMinutes, "minutes": UnitMinutes,
	"h": UnitHours, "hour": UnitHours, "hours": UnitHours,
	"d": UnitDays, "day": UnitDays, "days": UnitDays,
	"w": UnitWeeks, "week": UnitWeeks, "weeks": UnitWeeks,
	"month": UnitMonths, "months": UnitMonths,
	"y": UnitYears, "year": UnitYears, "years": UnitYears,
}

// ParseUnit нормализует строку единицы. "M" — месяцы, "m" — минуты.
// Пустая строка трактуется как дни.
func ParseUnit(raw string) (Unit, error) {
	if raw == "M" {
		return UnitMonths, nil
	}
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return UnitDays, nil
	}
	if u, ok := aliases[s]; ok {
		return u, nil
	}
	return "", fmt.Errorf("неизвестная единица срока хранения %q", raw)
}

// ComputeExpiry возвращает момент истечения now + retention единиц.
// retention <= 0 — запись бессрочная (model.Never), это не ошибка.
func ComputeExpiry(retention int, unit string, now time.Time) (model.Expiry, error) {
	if retention <= 0 {
		return model.Never, nil
	}

	u, err := ParseUnit(unit)
	if err != nil {
		return model.Never, err
	}

	var at time.Time
	switch u {
	case UnitSeconds:
		at = addClock(now, retention, time.Second)
	case UnitMinutes:
		at = addClock(now, retention, time.Minute)
	case UnitHours:
		at = addClock(now, retention, time.Hour)
	case UnitDays:
		at = now.AddDate(0, 0, retention)
	case UnitWeeks:
		at = now.AddDate(0, 0, 7*retention)
	case UnitMonths:
		at = now.AddDate(0, retention, 0)
	case UnitYears:
		at = now.AddDate(retention, 0, 0)
	}

	return model.ExpiresAt(at), nil
}

// addClock прибавляет n единиц unit. Если n * unit не помещается в
// time.Duration (~292 года), целые сутки прибавляются через AddDate.
func addClock(now time.Time, n int, unit time.Duration) time.Time {
	if int64(n) <= math.MaxInt64/int64(unit) {
		return now.Add(time.Duration(n) * unit)
	}
	perDay := int(24 * time.Hour / unit)
	days, rest := n/perDay, n%perDay
	return now.AddDate(0, 0, days).Add(time.Duration(rest) * unit)
}

// IsExpired проверяет, истёк ли срок: бессрочные записи не истекают,
// остальные истекли, если expires < now.
func IsExpired(expires model.Expiry, now time.Time) bool {
	at, ok := expires.Time()
	if !ok {
		return false
	}
	return at.Before(now)
}
