// Package httputil provides HTTP plumbing shared by the beacon-node poller
// and the serving layer.
//
// # Overview
//
//   - [Retry]: automatic retry with exponential backoff for transient
//     beacon-node failures
//   - [Cache]: file-based caching of derived artifacts, used to memoize
//     assembled graphs per snapshot
//
// # Retry
//
// Fork-choice endpoints are debug APIs and beacon nodes restart, sync, and
// rate-limit freely. Wrap transient failures in [RetryableError] so [Retry]
// knows to try again; anything else aborts immediately:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return fetchDump()
//	})
//
// # Caching
//
// Snapshots are immutable once captured, so a graph assembled from one can
// be cached indefinitely. [Cache] stores JSON blobs under
// ~/.cache/protovis/ keyed by SHA-256 of the cache key; use
// [Cache.Namespace] to keep graph payloads apart from anything else:
//
//	graphs := cache.Namespace("graph:")
//	ok, _ := graphs.Get(snapshotID, &g)
//
// The cache can be cleared with `protovis cache clear` or by deleting the
// directory.
package httputil
