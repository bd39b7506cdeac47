package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eleven-am/jobgraph/internal/domain"
)

var (
	attrRunID    = attribute.Key("jobgraph.run_id")
	attrWorkflow = attribute.Key("jobgraph.workflow")
	attrEntry    = attribute.Key("jobgraph.entry")
	attrCopyNr   = attribute.Key("jobgraph.copy_nr")
	attrDepth    = attribute.Key("jobgraph.depth")
	attrErrors   = attribute.Key("jobgraph.errors")
	attrSuccess  = attribute.Key("jobgraph.success")
)

func (j *Job) startRunSpan(ctx context.Context) (context.Context, trace.Span) {
	return j.engine.tracer.Start(ctx, "jobgraph.run",
		trace.WithAttributes(
			attrRunID.String(j.id),
			attrWorkflow.String(j.definition.Name),
		))
}

func (j *Job) startEntrySpan(ctx context.Context, node domain.EntryNode, depth int) (context.Context, trace.Span) {
	return j.engine.tracer.Start(ctx, "jobgraph.entry "+node.Name,
		trace.WithAttributes(
			attrRunID.String(j.id),
			attrEntry.String(node.Name),
			attrCopyNr.Int(node.CopyNr),
			attrDepth.Int(depth),
		))
}

func endSpan(span trace.Span, res *domain.Result, err error) {
	if res != nil {
		span.SetAttributes(attrSuccess.Bool(res.Success), attrErrors.Int64(res.Errors))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if res != nil && !res.Success {
		span.SetStatus(codes.Error, "entry result failed")
	}
	span.End()
}
