package auction

import (
	"math"
	"time"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// State is the lifecycle position of an auction.
type State int

const (
	StateNone State = iota
	StateActive
	StateEnded
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// StateOf derives the state of record at now. ENDED is a time predicate,
// not a stored flag.
func StateOf(record *interfaces.AuctionRecord, now time.Time) State {
	switch {
	case !record.Exists():
		return StateNone
	case record.Settled:
		return StateSettled
	case Ended(record, now):
		return StateEnded
	default:
		return StateActive
	}
}

// Ended reports whether the bidding window of record has closed at now.
func Ended(record *interfaces.AuctionRecord, now time.Time) bool {
	return !now.Before(record.EndTime)
}

// Active reports whether record accepts bids at now.
func Active(record *interfaces.AuctionRecord, now time.Time) bool {
	return StateOf(record, now) == StateActive
}

// DurationFromParts converts an hours/minutes/seconds form input into a
// duration. It does not require minutes or seconds to be below 60.
func DurationFromParts(hours, minutes, seconds uint64) (time.Duration, error) {
	const maxSeconds = uint64(math.MaxInt64 / int64(time.Second))
	if hours > maxSeconds/3600 || minutes > maxSeconds/60 || seconds > maxSeconds {
		return 0, &interfaces.ValidationError{Field: "duration", Reason: "too long"}
	}
	total := hours*3600 + minutes*60
	if total > maxSeconds-seconds {
		return 0, &interfaces.ValidationError{Field: "duration", Reason: "too long"}
	}
	total += seconds
	return time.Duration(total) * time.Second, nil
}
