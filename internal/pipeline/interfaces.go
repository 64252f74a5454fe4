package pipeline

import (
	"context"

	"civicbriefs/internal/core"
	"civicbriefs/internal/ingest"
)

// Ingester fetches configured sources and stores new items
type Ingester interface {
	Run(ctx context.Context) (*ingest.Report, error)
}

// SyllabusMapper links stored news to syllabus topics
type SyllabusMapper interface {
	// MapNewsToSyllabus returns the number of new mappings created
	MapNewsToSyllabus(ctx context.Context) (int, error)
}

// CapsuleBuilder produces today's capsule
type CapsuleBuilder interface {
	BuildDaily(ctx context.Context) (*core.Capsule, error)
}

// CapsuleNotifier delivers a capsule to subscribers
type CapsuleNotifier interface {
	// SendCapsule never fails as a whole; it reports per-recipient outcomes
	SendCapsule(ctx context.Context, capsule *core.Capsule, recipients []string) (sent, failed int)
}
