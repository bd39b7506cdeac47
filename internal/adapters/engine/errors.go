package engine

import "github.com/eleven-am/jobgraph/internal/domain"

const (
	engineComponent    = "engine.Engine"
	jobComponent       = "engine.Job"
	walkComponent      = "engine.Walk"
	lifecycleComponent = "engine.Lifecycle"
)

func newEntryError(message string, cause error, opts ...domain.ErrorOption) *domain.DomainError {
	merged := []domain.ErrorOption{domain.WithComponent(walkComponent)}
	if len(opts) > 0 {
		merged = append(merged, opts...)
	}
	return domain.NewEntryExecutionError(message, cause, merged...)
}

func newJobValidationError(message string, cause error, opts ...domain.ErrorOption) *domain.DomainError {
	merged := []domain.ErrorOption{domain.WithComponent(jobComponent)}
	if len(opts) > 0 {
		merged = append(merged, opts...)
	}
	return domain.NewValidationError(message, cause, merged...)
}

func errorLogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	attrs := []any{
		"error", err,
		"error_category", domain.GetErrorCategory(err).String(),
		"error_severity", domain.GetErrorSeverity(err).String(),
	}

	if ctx := domain.GetErrorContext(err); ctx != nil {
		if ctx.Component != "" {
			attrs = append(attrs, "error_component", ctx.Component)
		}
		if ctx.Operation != "" {
			attrs = append(attrs, "error_operation", ctx.Operation)
		}
		if ctx.Entry != "" {
			attrs = append(attrs, "error_entry", ctx.Entry, "error_copy_nr", ctx.CopyNr)
		}
		if len(ctx.Details) > 0 {
			attrs = append(attrs, "error_details", ctx.Details)
		}
	}

	return attrs
}
