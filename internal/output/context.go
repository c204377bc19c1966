package output

import "context"

type formatKey struct{}
type queryKey struct{}
type agentKey struct{}

// AgentOptions are the result-shaping flags shared by every command.
type AgentOptions struct {
	Yes      bool
	Quiet    bool
	Limit    int
	SortBy   string
	SortDesc bool
}

// WithFormat returns a new context with the output format attached.
func WithFormat(ctx context.Context, format Format) context.Context {
	return context.WithValue(ctx, formatKey{}, format)
}

// FormatFromContext returns the output format, FormatText if unset.
func FormatFromContext(ctx context.Context) Format {
	if v, ok := ctx.Value(formatKey{}).(Format); ok {
		return v
	}
	return FormatText
}

// WithQuery attaches a jq filter.
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// QueryFromContext returns the jq filter, if any.
func QueryFromContext(ctx context.Context) string {
	q, _ := ctx.Value(queryKey{}).(string)
	return q
}

// WithAgentOptions attaches result-shaping options.
func WithAgentOptions(ctx context.Context, opts AgentOptions) context.Context {
	return context.WithValue(ctx, agentKey{}, opts)
}

// AgentOptionsFromContext returns the attached options or the zero value.
func AgentOptionsFromContext(ctx context.Context) AgentOptions {
	opts, _ := ctx.Value(agentKey{}).(AgentOptions)
	return opts
}

func updateAgent(ctx context.Context, fn func(*AgentOptions)) context.Context {
	opts := AgentOptionsFromContext(ctx)
	fn(&opts)
	return WithAgentOptions(ctx, opts)
}

// WithYes sets --yes.
func WithYes(ctx context.Context, yes bool) context.Context {
	return updateAgent(ctx, func(o *AgentOptions) { o.Yes = yes })
}

// YesFromContext reports whether --yes was given.
func YesFromContext(ctx context.Context) bool {
	return AgentOptionsFromContext(ctx).Yes
}

// WithLimit sets --result-limit (0 = unlimited).
func WithLimit(ctx context.Context, limit int) context.Context {
	return updateAgent(ctx, func(o *AgentOptions) { o.Limit = limit })
}

// LimitFromContext returns --result-limit.
func LimitFromContext(ctx context.Context) int {
	return AgentOptionsFromContext(ctx).Limit
}

// WithSort sets --result-sort-by and --result-desc.
func WithSort(ctx context.Context, field string, desc bool) context.Context {
	return updateAgent(ctx, func(o *AgentOptions) {
		o.SortBy = field
		o.SortDesc = desc
	})
}

// SortFromContext returns the sort field and direction.
func SortFromContext(ctx context.Context) (field string, desc bool) {
	opts := AgentOptionsFromContext(ctx)
	return opts.SortBy, opts.SortDesc
}

// WithQuiet sets --quiet.
func WithQuiet(ctx context.Context, quiet bool) context.Context {
	return updateAgent(ctx, func(o *AgentOptions) { o.Quiet = quiet })
}

// QuietFromContext reports whether --quiet was given.
func QuietFromContext(ctx context.Context) bool {
	return AgentOptionsFromContext(ctx).Quiet
}
