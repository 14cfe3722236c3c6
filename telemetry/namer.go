package telemetry

// SpanNamer turns operation names into span names.
type SpanNamer interface {
	Name(operation string) string
}

// DefaultNamer returns operation names unchanged.
type DefaultNamer struct{}

// Name returns operation.
func (DefaultNamer) Name(operation string) string {
	return operation
}

// PrefixNamer prepends Prefix and a dot, e.g. "sensorsim.tick".
type PrefixNamer struct {
	Prefix string
}

// Name returns Prefix + "." + operation, or operation when Prefix is empty.
func (n PrefixNamer) Name(operation string) string {
	if n.Prefix == "" {
		return operation
	}

	return n.Prefix + "." + operation
}

// NameMessaging returns a messaging span name: "verb destination", e.g. "publish sensors.history".
func NameMessaging(verb, destination string) string {
	return verb + " " + destination
}

// NameDB returns a database span name: "verb table", e.g. "INSERT sensor_data_histories".
func NameDB(verb, table string) string {
	return verb + " " + table
}
