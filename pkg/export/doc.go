// Package export writes completed jobs to disk as JSON documents.
//
// Each job becomes <dir>/<username>_<id>.json holding the summary, the
// highlighted items and every collected item in result order. Files are
// written to a temporary path, synced and renamed into place, so readers
// never see a partial document.
//
// Usage:
//
//	m, err := export.NewManager(cfg.Export.Directory, log)
//	if err != nil {
//	    return err
//	}
//	path, err := m.Export(job)
package export
