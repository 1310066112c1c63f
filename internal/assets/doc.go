// Package assets downloads the media referenced by an archive.
//
// Every asset is identified by the final path segment of its source URL,
// which the GroupMe image and video services keep unique per asset. Files
// are stored as <identifier>.<ext>, where ext comes from the response's
// Content-Type because the URL carries no reliable extension.
//
// Downloads are idempotent: before fetching, the destination directory is
// indexed and any identifier already present is skipped. Partial downloads
// are written to hidden temporary files, which the index ignores, and only
// renamed into place once complete.
//
// A failing download is reported and skipped. It never cancels other
// downloads or the run; media is not required for an archive to be
// complete.
package assets
