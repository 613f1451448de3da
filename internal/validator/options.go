package validator

const DefaultMaxDepth = 3

var (
	DefaultLanguages   = []string{"en", "es"}
	DefaultPageFormats = []string{"A4", "LETTER", "LEGAL", "CUSTOM"}
)

// Options tune publish-mode checks. Zero fields take the defaults.
type Options struct {
	MaxDepth    int
	Languages   []string
	PageFormats []string
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if len(o.Languages) == 0 {
		o.Languages = DefaultLanguages
	}
	if len(o.PageFormats) == 0 {
		o.PageFormats = DefaultPageFormats
	}

	return o
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
