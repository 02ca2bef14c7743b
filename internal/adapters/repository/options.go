package repository

// Default store settings.
const (
	defaultTable     = "lms_reference"
	defaultKeyPrefix = "lms"
)

type options struct {
	table        string
	keyPrefix    string
	ensureSchema bool
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithTable sets the SQL table holding reference rows.
func WithTable(table string) Option {
	return func(o *options) {
		if table != "" {
			o.table = table
		}
	}
}

// WithKeyPrefix sets the prefix of Redis hash keys.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithEnsureSchema creates the SQL table on open if it does not exist.
func WithEnsureSchema() Option {
	return func(o *options) {
		o.ensureSchema = true
	}
}

func newOptions(opts []Option) options {
	o := options{table: defaultTable, keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
