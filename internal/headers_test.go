package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func echoRealIP(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = r.Header.Get("X-Real-Ip")
	})
}

func TestClientAddressChain(t *testing.T) {
	for _, tt := range []struct {
		name             string
		remoteAddr       string
		xff              string
		realIP           string
		stripPrivate     bool
		useRemoteAddress bool
		want             string
	}{
		{
			name:       "socket address only",
			remoteAddr: "203.0.113.5:41234",
			want:       "203.0.113.5",
		},
		{
			name:       "forwarded for wins over socket",
			remoteAddr: "203.0.113.5:41234",
			xff:        "198.51.100.1",
			want:       "198.51.100.1",
		},
		{
			name:         "private forwarded entries are stripped",
			remoteAddr:   "203.0.113.5:41234",
			xff:          "10.0.0.4, 192.168.1.1",
			stripPrivate: true,
			want:         "203.0.113.5",
		},
		{
			name:       "private forwarded entries kept without strip",
			remoteAddr: "203.0.113.5:41234",
			xff:        "10.0.0.4",
			want:       "10.0.0.4",
		},
		{
			name:             "use remote address overrides everything",
			remoteAddr:       "203.0.113.5:41234",
			xff:              "198.51.100.1",
			useRemoteAddress: true,
			want:             "203.0.113.5",
		},
		{
			name:         "loopback stripped falls back to existing header",
			remoteAddr:   "127.0.0.1:41234",
			realIP:       "198.51.100.7",
			stripPrivate: true,
			want:         "198.51.100.7",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var got string

			var h http.Handler = echoRealIP(&got)
			h = RemoteXRealIP(tt.useRemoteAddress, "tcp", h)
			h = XForwardedForToXRealIP(h)
			h = XForwardedForUpdate(tt.stripPrivate, h)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-Ip", tt.realIP)
			}

			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("wanted X-Real-Ip %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRemoteXRealIPUnixSocket(t *testing.T) {
	var got string
	h := RemoteXRealIP(true, "unix", echoRealIP(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "@"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "" {
		t.Errorf("wanted no X-Real-Ip for unix sockets, got %q", got)
	}
}

func TestNoStoreCache(t *testing.T) {
	h := NoStoreCache(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("wanted Cache-Control no-store, got %q", got)
	}
}
