// Package message turns raw conversation history into display records.
package message

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TimeLayout is the display format for message timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Epoch seconds outside years 0000-9999 cannot be rendered with TimeLayout.
var (
	minEpoch = float64(time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC).Unix())
	maxEpoch = float64(time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC).Unix())
)

const (
	unknownSender = "Unknown"
	unknownTime   = "unknown"
)

// Raw is a history entry as the platform returned it.
type Raw struct {
	SenderID string
	// SenderLabel is a name carried on the message itself (bot username or
	// bot id), used only when SenderID is empty.
	SenderLabel string
	Text        string
	// SentAt is the platform's string-encoded epoch seconds, e.g. "1700000000.000100".
	SentAt string
}

// Normalized is a Raw message ready for display.
type Normalized struct {
	User      string `json:"user" yaml:"user"`
	Text      string `json:"text" yaml:"text"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// NameResolver maps a user id to a display name.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Normalizer converts a batch of Raw messages into chronological Normalized ones.
type Normalizer struct {
	Resolver NameResolver
	// Location defaults to time.Local.
	Location *time.Location
	Log      logrus.FieldLogger
}

// Normalize never fails: name and timestamp problems fall back per message.
// The result has the same length as raws and is ordered oldest first.
func (n *Normalizer) Normalize(ctx context.Context, raws []Raw) []Normalized {
	loc := n.Location
	if loc == nil {
		loc = time.Local
	}

	entries := make([]entry, 0, len(raws))
	for _, raw := range raws {
		name, ok := ResolveName(ctx, n.Resolver, raw)
		if !ok {
			n.debugf("user lookup for %q failed, showing %q", raw.SenderID, name)
		}
		ts, ok := FormatTimestamp(raw.SentAt, loc)
		if !ok {
			n.debugf("timestamp %q not parseable, showing %q", raw.SentAt, ts)
		}
		epoch, err := parseEpoch(raw.SentAt)
		entries = append(entries, entry{
			msg:    Normalized{User: name, Text: raw.Text, Timestamp: ts},
			epoch:  epoch,
			parsed: err == nil,
		})
	}

	// The platform hands back newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sortChronological(entries)

	out := make([]Normalized, len(entries))
	for i, e := range entries {
		out[i] = e.msg
	}
	return out
}

func (n *Normalizer) debugf(format string, args ...interface{}) {
	if n.Log != nil {
		n.Log.Debugf(format, args...)
	}
}

// ResolveName returns the display name for raw's sender. ok is false when the
// lookup failed and the raw sender id is returned instead.
func ResolveName(ctx context.Context, r NameResolver, raw Raw) (name string, ok bool) {
	if raw.SenderID == "" {
		if raw.SenderLabel != "" {
			return raw.SenderLabel, true
		}
		return unknownSender, true
	}
	if r == nil {
		return raw.SenderID, false
	}
	name, err := r.DisplayName(ctx, raw.SenderID)
	if err != nil || name == "" {
		return raw.SenderID, false
	}
	return name, true
}

// FormatTimestamp renders epoch seconds as TimeLayout in loc. ok is false
// when raw does not parse or falls outside years 0000-9999; raw is then returned unchanged, or "unknown" when
// it is empty.
func FormatTimestamp(raw string, loc *time.Location) (formatted string, ok bool) {
	epoch, err := parseEpoch(raw)
	if err != nil {
		if raw == "" {
			return unknownTime, false
		}
		return raw, false
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).In(loc).Format(TimeLayout), true
}

func parseEpoch(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing timestamp %q", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Errorf("timestamp %q is not a finite number", raw)
	}
	if f < minEpoch || f >= maxEpoch {
		return 0, errors.Errorf("timestamp %q is out of range", raw)
	}
	return f, nil
}
