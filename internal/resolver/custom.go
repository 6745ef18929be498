package resolver

// Custom is an externally registered resolver consulted before the built-in
// rules, in registration order. A Custom implementation participates in a
// resolution direction by additionally implementing RequestToFile,
// FileToRequest, or Aliaser; directions it does not implement are skipped.
//
// Each capability returns (value, handled). The three states are distinct:
// not implementing the interface means the resolver is never asked, returning
// handled == false passes to the next strategy, and handled == true commits
// the value even when it is the empty string. A match can therefore never be
// confused with a decline.
type Custom interface {
	// Name identifies the resolver in logs.
	Name() string
}

// RequestToFile maps a public request path to a file-system path.
type RequestToFile interface {
	RequestToFile(requestPath string) (file string, handled bool)
}

// FileToRequest maps a file-system path to a public request path.
type FileToRequest interface {
	FileToRequest(filePath string) (requestPath string, handled bool)
}

// Aliaser substitutes one identifier for another before path resolution.
type Aliaser interface {
	Alias(id string) (target string, handled bool)
}
