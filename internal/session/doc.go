// Package session stores per-client session state with an absolute expiry.
//
// Two backends implement Store: FileStore keeps every session in one JSON
// object file, and RedisStore keeps one key per session. Expiry is lazy: an
// expired entry is removed when it is next read, and ClearExpired removes the
// rest. A Sweeper can call ClearExpired on a schedule.
//
// Entry lifecycle:
//
//	Set --> Active --(ExpiresAt <= now)--> Expired --(Get/Update/ClearExpired)--> Deleted
//	          \--------------------(Delete)----------------------------------------/
//
// Update never extends ExpiresAt; only Set does.
package session
