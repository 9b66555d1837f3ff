// Package repositories implements SQLite persistence for the live update client.
//
// Key Implementations:
//   - [TaskSnapshotRepository] : last known status per task; terminal rows are never overwritten
//   - [NotificationCacheRepository] : the last fetched notification feed page, for offline listing
//   - [Recorder] : mirrors task changes from a [livesync.Store] into snapshots
//
// The terminality rule of the live store is enforced again in SQL, so a stale writer can
// never turn a finished task back into a running one on disk either.
package repositories
