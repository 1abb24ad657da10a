package model

// ResolvedEntry is the result of mapping a request path onto the served root.
type ResolvedEntry struct {
	AbsolutePath string
	Exists       bool
	IsFallback   bool
	ContentType  string
}
