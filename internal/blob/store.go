package blob

import "context"

// Store is the object-store collaborator the pipeline needs: bulk upload of
// local files matching a glob, and single-object download. Implementations
// must make each individual upload atomic from the store's perspective.
type Store interface {
	// UploadGlob uploads every local file matching pattern under the remote
	// prefix, keeping the file's base name. Returns the number of files
	// uploaded.
	UploadGlob(ctx context.Context, pattern, prefix string) (int, error)
	// Download copies one remote object to a local path.
	Download(ctx context.Context, remotePath, localPath string) error
}
