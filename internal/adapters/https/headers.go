package https

import (
	"net/http"
	"sort"
)

// UserAgentPrefix is prepended to the configured version in the User-Agent header
const UserAgentPrefix = "osquery/"

// HeaderField is a single request header line
type HeaderField struct {
	Name  string
	Value string
}

// Line formats the field the way it is written on the wire
func (f HeaderField) Line() string {
	return f.Name + ": " + f.Value
}

// HeaderSet is the fixed, ordered set of headers sent on every request of a transport.
// It is built once and never modified afterwards.
type HeaderSet struct {
	fields []HeaderField
}

// newHeaderSet builds the default headers in lexicographic name order
func newHeaderSet(contentType, hostname, version string) *HeaderSet {
	headers := map[string]string{
		"Connection":   "close",
		"Content-Type": contentType,
		"Accept":       contentType,
		"Host":         hostname,
		"User-Agent":   UserAgentPrefix + version,
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]HeaderField, 0, len(names))
	for _, name := range names {
		fields = append(fields, HeaderField{Name: name, Value: headers[name]})
	}

	return &HeaderSet{fields: fields}
}

// Fields returns a copy of the header fields in wire order
func (s *HeaderSet) Fields() []HeaderField {
	out := make([]HeaderField, len(s.fields))
	copy(out, s.fields)
	return out
}

// Lines returns the formatted header lines in wire order
func (s *HeaderSet) Lines() []string {
	lines := make([]string, len(s.fields))
	for i, f := range s.fields {
		lines[i] = f.Line()
	}
	return lines
}

// Get returns the value of the named header, or "" if it is not part of the set
func (s *HeaderSet) Get(name string) string {
	canonical := http.CanonicalHeaderKey(name)
	for _, f := range s.fields {
		if f.Name == canonical {
			return f.Value
		}
	}
	return ""
}

// apply copies the set onto an outgoing net/http request.
// Host is carried by req.Host and Connection: close by req.Close.
func (s *HeaderSet) apply(req *http.Request) {
	for _, f := range s.fields {
		switch f.Name {
		case "Host":
			req.Host = f.Value
		case "Connection":
			req.Close = true
			req.Header.Set(f.Name, f.Value)
		default:
			req.Header.Set(f.Name, f.Value)
		}
	}
}
