// Package notify answers the two questions a notification badge asks:
// is anything unread, and how long ago did each entry happen.
package notify

import (
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
)

// JustNow is the label for anything less than a minute old, or in the future.
const JustNow = "just now"

// Kind is the badge category of a notification.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindAccount     Kind = "account"
	KindAlert       Kind = "alert"
	KindOther       Kind = "other"
)

// HasUnread reports whether at least one notification is unread.
func HasUnread(ns []core.Notification) bool {
	for _, n := range ns {
		if !n.Read {
			return true
		}
	}
	return false
}

func UnreadCount(ns []core.Notification) int {
	count := 0
	for _, n := range ns {
		if !n.Read {
			count++
		}
	}
	return count
}

// RelativeTime describes how long before now ts happened, using the largest whole
// unit among days, hours and minutes.
func RelativeTime(ts, now time.Time) string {
	elapsed := now.Sub(ts)
	switch {
	case elapsed >= 24*time.Hour:
		return ago(int(elapsed/(24*time.Hour)), "day")
	case elapsed >= time.Hour:
		return ago(int(elapsed/time.Hour), "hour")
	case elapsed >= time.Minute:
		return ago(int(elapsed/time.Minute), "minute")
	default:
		return JustNow
	}
}

func ago(n int, unit string) string {
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}

// KindOf maps a notification type to its badge category, ignoring case.
func KindOf(typ string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(typ))); k {
	case KindTransaction, KindAccount, KindAlert:
		return k
	default:
		return KindOther
	}
}
