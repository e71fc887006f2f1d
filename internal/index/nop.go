package index

import (
	"context"
	"fmt"

	"transcripthost/internal/domain"
)

// Nop accepts records and forgets them.
var Nop domain.TranscriptIndex = nop{}

type nop struct{}

func (nop) Append(context.Context, domain.TranscriptRecord) error   { return nil }
func (nop) List(context.Context) ([]domain.TranscriptRecord, error) { return nil, nil }
func (nop) Close() error                                            { return nil }
func (nop) Get(_ context.Context, id string) (*domain.TranscriptRecord, error) {
	return nil, fmt.Errorf("%w: transcript %s", domain.ErrNotFound, id)
}
