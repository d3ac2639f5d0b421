// Package overlap computes attendee coverage over normalized availability
// windows. Everything works day-by-day: with tens of windows capped at
// two-week spans the O(days x windows) scan is deliberate, an interval tree
// would not pay for itself here.
package overlap

import (
	"sort"
	"time"

	"backend-tripline/internal/shared/dates"
)

// Window is the analyzer's input shape: who is available, and when.
type Window struct {
	UserID string
	Start  time.Time
	End    time.Time
}

// BestOverlap is the winning contiguous range and how many distinct
// participants cover every one of its days.
type BestOverlap struct {
	Start    time.Time `json:"start_date"`
	End      time.Time `json:"end_date"`
	Coverage int       `json:"coverage_count"`
}

func (w Window) valid() bool {
	return w.UserID != "" && !w.Start.IsZero() && !w.End.IsZero() && !w.End.Before(w.Start)
}

// DayCoverage marks every day of every window, inclusive, with the set of
// users covering it. A user with two overlapping windows still counts once
// per day. Windows without structured dates are skipped.
func DayCoverage(windows []Window) map[string]map[string]struct{} {
	cover := map[string]map[string]struct{}{}
	for _, w := range windows {
		if !w.valid() {
			continue
		}
		for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
			key := dates.ISO(d)
			if cover[key] == nil {
				cover[key] = map[string]struct{}{}
			}
			cover[key][w.UserID] = struct{}{}
		}
	}
	return cover
}

// BestRange finds the contiguous range of at least minDays days maximizing
// the number of distinct users covering every day of it. Equal coverage
// prefers the shorter range; equal length prefers the earlier start. Returns
// nil when no qualifying range has any coverage.
func BestRange(windows []Window, minDays int) *BestOverlap {
	if minDays < 1 {
		minDays = 1
	}
	cover := DayCoverage(windows)
	if len(cover) == 0 {
		return nil
	}

	days := make([]string, 0, len(cover))
	for d := range cover {
		days = append(days, d)
	}
	sort.Strings(days)

	var best *BestOverlap
	for i := range days {
		start, _ := time.Parse(dates.ISOFormat, days[i])
		shared := map[string]struct{}{}
		for u := range cover[days[i]] {
			shared[u] = struct{}{}
		}

		end := start
		for {
			length := dates.Between(start, end) + 1
			if length >= minDays && len(shared) > 0 {
				cand := &BestOverlap{Start: start, End: end, Coverage: len(shared)}
				if better(cand, best) {
					best = cand
				}
			}

			next := end.AddDate(0, 0, 1)
			nextSet, ok := cover[dates.ISO(next)]
			if !ok {
				break
			}
			shared = intersect(shared, nextSet)
			if len(shared) == 0 {
				break
			}
			end = next
		}
	}
	return best
}

// RangeCoverage reports which users' windows fully contain [start, end].
// Partial overlap with the range does not count; this is the strict check a
// leader's concrete proposal is validated against.
func RangeCoverage(windows []Window, start, end time.Time) (int, []string) {
	seen := map[string]struct{}{}
	for _, w := range windows {
		if !w.valid() {
			continue
		}
		if !w.Start.After(start) && !w.End.Before(end) {
			seen[w.UserID] = struct{}{}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return len(users), users
}

func better(cand, best *BestOverlap) bool {
	if best == nil {
		return true
	}
	if cand.Coverage != best.Coverage {
		return cand.Coverage > best.Coverage
	}
	candLen := dates.Between(cand.Start, cand.End)
	bestLen := dates.Between(best.Start, best.End)
	if candLen != bestLen {
		return candLen < bestLen
	}
	return cand.Start.Before(best.Start)
}

func intersect(a map[string]struct{}, b map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for u := range a {
		if _, ok := b[u]; ok {
			out[u] = struct{}{}
		}
	}
	return out
}
