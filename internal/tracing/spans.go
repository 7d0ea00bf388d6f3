package tracing

// Span attribute keys.
const (
	AttrHTTPMethod   = "http.method"
	AttrHTTPRoute    = "http.route"
	AttrHTTPStatus   = "http.status_code"
	AttrRunUID       = "run.uid"
	AttrItemUID      = "queue.item.uid"
	AttrItemName     = "queue.item.name"
	AttrDocumentName = "document.name"
	AttrStore        = "store.backend"
)

// Span name prefixes.
const (
	SpanPrefixHTTP  = "http."
	SpanPrefixQueue = "queue."
	SpanPrefixStore = "store."
)

// Span event names.
const (
	EventDocumentEmitted = "document.emitted"
	EventItemFinished    = "queue.item.finished"
)
