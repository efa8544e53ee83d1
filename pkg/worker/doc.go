// Package worker executes queued jobs.
//
// A Worker polls the queue, claims one job at a time and runs it through
// three stages: reposts from the timeline and originals from search (sharing
// one dedup set), chunked analysis, and completion with flagged items sorted
// first. Every job ends completed or failed; errors and panics inside a job
// are recorded on it and the loop carries on.
//
// Pool runs several workers in one process:
//
//	pool := worker.NewPool(worker.IDs(cfg.Worker.ID, cfg.Worker.Concurrency),
//	    func(id string) *worker.Worker {
//	        return worker.New(queue, corpus, chunker, src, worker.OptionsFromConfig(cfg, id))
//	    }, log)
//	err := pool.Run(ctx)
package worker
