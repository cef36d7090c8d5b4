// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

/*
Package cache provides a thread-safe LRU cache with TTL expiration.

The serving engine keeps recommendation responses here, keyed by customer
and list length, so repeated queries skip the scoring pass. The cache is
cleared whenever a new model version is installed.

# Behavior

  - O(1) Get, Add and Remove through a hashmap plus a doubly-linked list
  - The least recently used entry is evicted when capacity is reached
  - Expiration is lazy: an expired entry is dropped when it is next read,
    or in bulk by CleanupExpired
  - Hit and miss counters are available through Stats

# Usage

	c := cache.NewLRU[string, []string](1000, 5*time.Minute)
	c.Add("12346:10", items)
	if items, ok := c.Get("12346:10"); ok {
	    ...
	}
*/
package cache
