// Package codec renders scan results and reports for output in the formats
// the CLI offers.
package codec

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrUnknownFormat is returned for a format no exporter handles
var ErrUnknownFormat = errors.New("unknown output format")

// Exporter writes a value in one serialization format
type Exporter interface {
	Export(v any, w io.Writer) error
	Format() string
}

var exporters = map[string]Exporter{
	"json": NewJSONCodec(),
	"yaml": NewYAMLCodec(),
}

// ForFormat returns the exporter for name
func ForFormat(name string) (Exporter, error) {
	if e, ok := exporters[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w %q (want one of %v)", ErrUnknownFormat, name, Formats())
}

// Formats lists the structured formats, sorted
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
