// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"time"

	"github.com/jeranaias/sidechat/internal/model"
)

// Bucket labels, newest first.
const (
	BucketToday     = "Today"
	BucketYesterday = "Yesterday"
	BucketWeek      = "Previous 7 Days"
	BucketMonth     = "Previous 30 Days"
	BucketOlder     = "Older"
)

const day = 24 * time.Hour

var bucketOrder = []string{BucketToday, BucketYesterday, BucketWeek, BucketMonth, BucketOlder}

// Group is a labeled run of conversations sharing an age bucket.
type Group struct {
	Label         string
	Conversations []*model.Conversation
}

// BucketFor returns the bucket label for a conversation last touched age ago.
// Boundaries are half-open: [0,1d) Today, [1d,2d) Yesterday, [2d,7d) Previous
// 7 Days, [7d,30d) Previous 30 Days, the rest Older. Touches in the future
// count as Today.
func BucketFor(age time.Duration) string {
	switch {
	case age < day:
		return BucketToday
	case age < 2*day:
		return BucketYesterday
	case age < 7*day:
		return BucketWeek
	case age < 30*day:
		return BucketMonth
	default:
		return BucketOlder
	}
}

// Groups buckets the collection by age relative to now. Each group keeps
// collection order and empty groups are omitted.
func (r *Repository) Groups(now time.Time) []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	buckets := make(map[string][]*model.Conversation, len(bucketOrder))
	for _, c := range r.convs {
		label := BucketFor(c.Age(now))
		buckets[label] = append(buckets[label], c.Clone())
	}

	var groups []Group
	for _, label := range bucketOrder {
		if convs := buckets[label]; len(convs) > 0 {
			groups = append(groups, Group{Label: label, Conversations: convs})
		}
	}
	return groups
}
