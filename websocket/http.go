package websocket

// HTTPRequest is the minimal view of an HTTP Upgrade request the
// handshake needs, kept free of any concrete HTTP library so the engine
// package never imports net/http itself. StartOpenAsClient writes
// through SetHeader/AppendHeaderToken; OpenAsServer only reads through
// Method/Header.
type HTTPRequest interface {
	Method() string
	Header(name string) string
	SetHeader(name, value string)
	// AppendHeaderToken adds token to name's comma-separated value,
	// preserving whatever tokens are already there.
	AppendHeaderToken(name, token string)
}

// HTTPResponse is the minimal view of an HTTP Upgrade response the
// handshake needs. FinishOpenAsClient only reads through
// StatusCode/Header; OpenAsServer writes headers via SetHeader and must
// call WriteHeader exactly once, after every SetHeader/AppendHeaderToken
// call (concrete net/http-backed implementations silently drop header
// mutations made after the status line is written).
type HTTPResponse interface {
	StatusCode() int
	Header(name string) string
	SetHeader(name, value string)
	// AppendHeaderToken adds token to name's comma-separated value,
	// preserving whatever tokens are already there (e.g. the server's
	// merged "Connection: upgrade" response header).
	AppendHeaderToken(name, token string)
	// WriteHeader commits the status line. reasonPhrase carries the
	// RFC 6455 wording ("Switching Protocols", "Bad Request") a bare
	// status code can't express.
	WriteHeader(statusCode int, reasonPhrase string)
}
