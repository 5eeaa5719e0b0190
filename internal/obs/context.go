package obs

import "context"

type routePatternKey struct{}

type ticketIDKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

// TicketHolder is placed on the request context by RequestLogger so handlers
// can report which ticket a request touched.
type TicketHolder struct {
	ID string
}

// WithTicketHolder attaches an empty holder to ctx.
func WithTicketHolder(ctx context.Context) (context.Context, *TicketHolder) {
	h := &TicketHolder{}
	return context.WithValue(ctx, ticketIDKey{}, h), h
}

// SetTicketID records the ticket a request operates on, if a holder is present.
func SetTicketID(ctx context.Context, id string) {
	if ctx == nil {
		return
	}
	if h, ok := ctx.Value(ticketIDKey{}).(*TicketHolder); ok {
		h.ID = id
	}
}
