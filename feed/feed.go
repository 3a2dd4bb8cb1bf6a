// Package feed holds the data model of a channel feed: which channels
// belong to it and its unread counters.
package feed

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// ChannelID identifies a channel.
type ChannelID int64

// Feed groups channels under one id. A Feed is owned by one goroutine and
// is not safe for concurrent use.
type Feed struct {
	id               int32
	channels         mapset.Set[ChannelID]
	unreadCount      int
	unreadMutedCount int
	complete         bool
}

// New creates an empty feed.
func New(id int32) *Feed {
	return &Feed{
		id:       id,
		channels: mapset.NewThreadUnsafeSet[ChannelID](),
	}
}

// ID returns the feed id.
func (f *Feed) ID() int32 { return f.id }

// RegisterOne adds a channel. It reports whether the channel was new.
func (f *Feed) RegisterOne(channel ChannelID) bool {
	if f.channels.Contains(channel) {
		return false
	}
	f.channels.Add(channel)
	return true
}

// UnregisterOne removes a channel. It reports whether the channel was present.
func (f *Feed) UnregisterOne(channel ChannelID) bool {
	if !f.channels.Contains(channel) {
		return false
	}
	f.channels.Remove(channel)
	return true
}

// Has reports whether the channel belongs to the feed.
func (f *Feed) Has(channel ChannelID) bool {
	return f.channels.Contains(channel)
}

// Channels returns the member channels in ascending order.
func (f *Feed) Channels() []ChannelID {
	out := f.channels.ToSlice()
	slices.Sort(out)
	return out
}

// Len returns the number of channels.
func (f *Feed) Len() int {
	return f.channels.Cardinality()
}

// SetUnreadCounts replaces both unread counters. Negative values are
// clamped to zero.
func (f *Feed) SetUnreadCounts(unread, muted int) {
	f.unreadCount = max(unread, 0)
	f.unreadMutedCount = max(muted, 0)
}

func (f *Feed) UnreadCount() int      { return f.unreadCount }
func (f *Feed) UnreadMutedCount() int { return f.unreadMutedCount }

// SetComplete marks the channel list as fully loaded.
func (f *Feed) SetComplete(complete bool) { f.complete = complete }

// Complete reports whether the channel list is fully loaded.
func (f *Feed) Complete() bool { return f.complete }
