// Package analysis sends a collected corpus to a text-completion service in
// budget-sized chunks and merges the answers.
//
// Every item carries a global index that the service echoes back when it
// flags an item, so flags from different chunks can be applied to the same
// collection:
//
//	items := analysis.FromPosts(posts)
//	res, err := analysis.NewChunker(gen, analysis.Options{}).Analyze(ctx, items, "alice", "")
//	if err != nil {
//	    return err
//	}
//	analysis.Merge(items, res.Flags)
//
// Completion failures never abort an analysis. A failed chunk contributes an
// error line to the synthesis input and no flags.
package analysis
