package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for search observability spans and metrics.
var (
	AttrEmbedModel      = attribute.Key("embedding.model")
	AttrEmbedProvider   = attribute.Key("embedding.provider")
	AttrEmbedTextCount  = attribute.Key("embedding.text_count")
	AttrEmbedDimensions = attribute.Key("embedding.dimensions")

	AttrSearchKind    = attribute.Key("search.kind")
	AttrSearchTopK    = attribute.Key("search.top_k")
	AttrSearchResults = attribute.Key("search.results")
	AttrSearchTerms   = attribute.Key("search.clinical_terms")
	AttrBuildID       = attribute.Key("corpus.build_id")
)
