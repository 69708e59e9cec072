package websocket

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// httpRequestAdapter adapts *http.Request to HTTPRequest.
type httpRequestAdapter struct{ req *http.Request }

func (a httpRequestAdapter) Method() string            { return a.req.Method }
func (a httpRequestAdapter) Header(name string) string { return a.req.Header.Get(name) }
func (a httpRequestAdapter) SetHeader(name, value string) {
	a.req.Header.Set(name, value)
}
func (a httpRequestAdapter) AppendHeaderToken(name, token string) {
	a.req.Header.Set(name, joinHeaderToken(a.req.Header.Get(name), token))
}

// rawResponseAdapter adapts a hijacked connection's bufio.Writer to
// HTTPResponse, writing the status line and headers by hand. Used by
// ServeHTTPUpgrade, which must hijack before it can tell whether the
// client sent any trailer bytes, and so can no longer go through
// http.ResponseWriter to answer the request.
type rawResponseAdapter struct {
	bw      *bufio.Writer
	headers http.Header
	wrote   bool
}

func newRawResponseAdapter(bw *bufio.Writer) *rawResponseAdapter {
	return &rawResponseAdapter{bw: bw, headers: make(http.Header)}
}

func (a *rawResponseAdapter) StatusCode() int           { return 0 }
func (a *rawResponseAdapter) Header(name string) string { return a.headers.Get(name) }
func (a *rawResponseAdapter) SetHeader(name, value string) {
	a.headers.Set(name, value)
}
func (a *rawResponseAdapter) AppendHeaderToken(name, token string) {
	a.headers.Set(name, joinHeaderToken(a.headers.Get(name), token))
}

// WriteHeader writes the status line and headers directly onto the
// hijacked connection and flushes. Only the first call has any effect.
func (a *rawResponseAdapter) WriteHeader(statusCode int, reasonPhrase string) {
	if a.wrote {
		return
	}
	a.wrote = true
	fmt.Fprintf(a.bw, "HTTP/1.1 %d %s\r\n", statusCode, reasonPhrase)
	_ = a.headers.Write(a.bw)
	fmt.Fprint(a.bw, "\r\n")
	_ = a.bw.Flush()
}

// httpResponseAdapter adapts *http.Response to HTTPResponse for the
// client side of the handshake (SetHeader/AppendHeaderToken/WriteHeader
// are unused there, since the client only ever reads a peer's response).
type httpResponseAdapter struct{ resp *http.Response }

func (a httpResponseAdapter) StatusCode() int                 { return a.resp.StatusCode }
func (a httpResponseAdapter) Header(name string) string       { return a.resp.Header.Get(name) }
func (a httpResponseAdapter) SetHeader(name, value string)    { a.resp.Header.Set(name, value) }
func (a httpResponseAdapter) AppendHeaderToken(string, string) {}
func (a httpResponseAdapter) WriteHeader(int, string)          {}

// ErrNotHijackable is returned by ServeHTTPUpgrade when the
// http.ResponseWriter does not support hijacking (RFC 6455 Section 4.2.2
// requires taking the TCP socket over from the HTTP server).
var ErrNotHijackable = errors.New("websocket: response writer does not support hijacking")

// ServeHTTPUpgrade performs the server side of the opening handshake
// directly against the standard library's net/http types. It hijacks the
// connection first, since RFC 6455 Section 4.2.1's "no trailer data"
// check can only be answered by inspecting whatever the http server's
// buffered reader already holds past the request headers; the 101 (or
// 400) response is then written by hand onto the raw connection, because
// once hijacked w can no longer be used. On success the hijacked
// connection is wrapped in a NetTransport bound to e; on failure it is
// closed and the handshake error returned.
func ServeHTTPUpgrade(e *Engine, w http.ResponseWriter, r *http.Request) error {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, ErrNotHijackable.Error(), http.StatusInternalServerError)
		return ErrNotHijackable
	}

	netConn, bufrw, err := hijacker.Hijack()
	if err != nil {
		return err
	}

	var trailer []byte
	if n := bufrw.Reader.Buffered(); n > 0 {
		trailer, _ = bufrw.Reader.Peek(n)
	}

	req := httpRequestAdapter{r}
	resp := newRawResponseAdapter(bufrw.Writer)

	e.mu.Lock()
	if e.transport != nil {
		e.mu.Unlock()
		resp.WriteHeader(http.StatusInternalServerError, "Internal Server Error")
		_ = netConn.Close()
		return ErrAlreadyOpen
	}
	if err := e.negotiateServer(req, resp, trailer); err != nil {
		e.mu.Unlock()
		if !resp.wrote {
			resp.WriteHeader(http.StatusBadRequest, "Bad Request")
		}
		_ = netConn.Close()
		return err
	}

	transport := newNetTransportOverReader(netConn, bufrw.Reader)
	e.bindTransport(transport, RoleServer)
	e.mu.Unlock()

	return nil
}

// DialClient performs the client side of the opening handshake over a
// plain TCP connection to addr (host:port) and, on success, returns an
// Engine bound as RoleClient. requestURI and host populate the request
// line and Host header; extraHeaders may carry application headers
// (e.g. Origin, Sec-WebSocket-Protocol).
func DialClient(addr, host, requestURI string, extraHeaders http.Header) (*Engine, error) {
	netConn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	e := New()
	req, err := http.NewRequest(http.MethodGet, "http://"+host+requestURI, nil)
	if err != nil {
		_ = netConn.Close()
		return nil, err
	}
	for name, values := range extraHeaders {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	if err := e.StartOpenAsClient(httpRequestAdapter{req}); err != nil {
		_ = netConn.Close()
		return nil, err
	}

	if err := req.Write(netConn); err != nil {
		_ = netConn.Close()
		return nil, err
	}

	reader := bufio.NewReader(netConn)
	resp, err := http.ReadResponse(reader, req)
	if err != nil {
		_ = netConn.Close()
		return nil, err
	}
	defer resp.Body.Close()

	transport := newNetTransportOverReader(netConn, reader)

	if err := e.FinishOpenAsClient(transport, httpResponseAdapter{resp}); err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("%w: %s", err, resp.Status)
	}

	return e, nil
}
