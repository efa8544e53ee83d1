// Package jobs is the durable job store and pending queue shared by
// submitters and workers.
//
// A job moves pending -> running -> completed | failed. Completed and failed
// are terminal: progress updates and repeated completions are ignored.
//
// Records live in a Backend. RedisBackend is the multi-host store (a hash of
// job documents, a list of pending ids, a hash of worker heartbeats);
// SQLiteBackend keeps the same three collections in one database file for a
// single host. In both, popping an id is atomic, so a job is held by at most
// one worker.
//
// Usage:
//
//	backend, err := jobs.OpenBackend(ctx, &cfg.Queue)
//	if err != nil {
//	    return err
//	}
//	q := jobs.NewQueue(backend, log)
//	defer q.Close()
//
//	job, err := q.Submit(ctx, jobs.Params{Username: "alice", IncludeTweets: true})
//
// There is no lease: a job whose worker died stays running. Stale lists such
// jobs by heartbeat age so an operator can resubmit them.
package jobs
