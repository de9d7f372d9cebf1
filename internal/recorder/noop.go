package recorder

import (
	"context"

	"FlowSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when recording is disabled.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSnapshot(context.Context, *model.FetchResult) error { return nil }
func (n *NoopRecorder) RecordBurn(context.Context, *model.BurnReport) error      { return nil }
func (n *NoopRecorder) RecordRichList(context.Context, *model.RichList) error    { return nil }
func (n *NoopRecorder) Close() error                                             { return nil }
