package thermostat

import "context"

// PhotoArchive port: keeps a copy of uploaded photos and removes the local file.
// Implementations must remove localPath even when the upload fails.
type PhotoArchive interface {
	UploadAndCleanup(ctx context.Context, localPath, key string) (string, error)
}
