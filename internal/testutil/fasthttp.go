package testutil

import (
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// NewClient serves h on an in-memory listener and returns a client whose
// every dial reaches it, whatever host the request URI names.
func NewClient(t testing.TB, h fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go srv.Serve(ln) //nolint:errcheck

	t.Cleanup(func() {
		ln.Close()
	})

	return &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}
}

type Request struct {
	Method string
	Path   string
	Header map[string]string
	Body   []byte
}

// Get returns the header value for name, ignoring case.
func (r Request) Get(name string) string {
	for k, v := range r.Header {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Recorder collects every request it serves.
type Recorder struct {
	mu       sync.Mutex
	requests []Request
}

func (r *Recorder) Record(ctx *fasthttp.RequestCtx) {
	header := map[string]string{}
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		header[string(k)] = string(v)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, Request{
		Method: string(ctx.Method()),
		Path:   string(ctx.Path()),
		Header: header,
		Body:   append([]byte(nil), ctx.PostBody()...),
	})
}

func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

func (r *Recorder) Paths() []string {
	var paths []string
	for _, req := range r.Requests() {
		paths = append(paths, req.Path)
	}
	return paths
}
