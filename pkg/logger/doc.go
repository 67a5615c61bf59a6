// Package logger builds *slog.Logger instances with environment presets,
// helper attribute constructors and attributes pulled from context.Context.
//
// New wraps the JSON or text slog handler in LogHandlerDecorator, which runs
// every registered ContextExtractor on each record. Attributes attached with
// ContextWithAttrs are always extracted, so a call chain can tag its context
// once and every log line below it carries the same reviewable or task fields:
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "reviewkit"))
//	ctx = logger.ContextWithAttrs(ctx, logger.ReviewableID(id), logger.Trigger("accept"))
//	log.InfoContext(ctx, "transition committed", logger.ToState("accepted"))
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
