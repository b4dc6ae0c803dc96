// Package pipeline saves a web page together with its same-host assets.
//
// A load runs six steps in order:
//
//  1. fetch_page downloads the page.
//  2. rewrite_page parses it, collects local img/script/link references,
//     plans a file for each distinct asset and rewrites the references.
//  3. ensure_assets_folder creates the assets folder (only when needed).
//  4. fetch_assets downloads every asset concurrently.
//  5. save_assets writes the assets.
//  6. save_page writes the rewritten page.
//
// Each failure is returned as a *PhaseError that matches one sentinel:
//
//	_, err := loader.LoadPage(ctx, "https://example.com/", dir)
//	if errors.Is(err, pipeline.ErrAssetFetch) {
//		// no asset and no page were written
//	}
//
// Nothing is written before rewrite_page succeeds and no asset is written
// unless every asset was fetched. Writes are not rolled back on a later
// failure.
//
// BatchProcessor runs independent loads of several pages concurrently.
package pipeline
