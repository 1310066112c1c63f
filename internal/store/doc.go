// Package store provides the SQLite index that accompanies every archive
// directory (archive.db).
//
// The index records:
//   - Runs: one row per successful archive run, with the archive digest
//   - Snapshot: the latest group info, people and messages
//   - Assets: every avatar and attachment file known to the archive
//
// # Invariants
//
// Snapshot replacement is atomic: a run's group, people, messages, assets
// and run row are written in one transaction, so a failed run leaves the
// previous snapshot intact.
//
// Messages are ordered by seq (archive order), never by created_at, so
// messages sharing a timestamp keep their order across reads.
//
// Asset rows are insert-only (ON CONFLICT DO NOTHING): the first run that
// downloaded an asset owns its row.
//
// # Database Configuration
//
//   - WAL mode
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
