package capability

import (
	"context"
	"io"
)

// AttachmentStore is the abstract object-storage capability used to fetch
// attachment bytes referenced by an InboundMessage's attachment descriptors.
// Implementations must support both an internal URL scheme
// (<scheme>://<bucket>/<path>) and arbitrary HTTPS URLs (§6).
type AttachmentStore interface {
	// Size returns the object's byte size without downloading its body,
	// used by Agent 2 to size-check before committing to a download.
	Size(ctx context.Context, url string) (int64, error)

	// Download returns a scoped reader for the object, bounded by maxBytes.
	// Callers must Close the returned handle; implementations must not
	// retain temp files beyond the call (§4.4).
	Download(ctx context.Context, url string, maxBytes int64) (io.ReadCloser, error)
}
