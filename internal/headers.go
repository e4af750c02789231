package internal

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/sebest/xff"
)

// RemoteXRealIP sets the X-Real-Ip header to the request's socket address.
// When useRemoteAddress is false the socket address is only used if nothing
// upstream (a proxy or X-Forwarded-For) already provided one.
func RemoteXRealIP(useRemoteAddress bool, bindNetwork string, next http.Handler) http.Handler {
	if bindNetwork == "unix" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !useRemoteAddress && r.Header.Get("X-Real-Ip") != "" {
			next.ServeHTTP(w, r)
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			slog.Debug("can't split remote address", "remote_addr", r.RemoteAddr, "err", err)
			next.ServeHTTP(w, r)
			return
		}

		r.Header.Set("X-Real-Ip", host)
		next.ServeHTTP(w, r)
	})
}

// XForwardedForToXRealIP sets X-Real-Ip to the first entry of
// X-Forwarded-For when the latter is present.
func XForwardedForToXRealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if xffHeader := r.Header.Get("X-Forwarded-For"); xffHeader != "" {
			first, _, _ := strings.Cut(xffHeader, ",")
			if first = strings.TrimSpace(first); first != "" {
				r.Header.Set("X-Real-Ip", first)
			}
		}

		next.ServeHTTP(w, r)
	})
}

// XForwardedForUpdate appends the socket address to X-Forwarded-For. When
// stripPrivate is set, private and loopback entries are removed so that a
// client behind a NAT is identified by its public address.
func XForwardedForUpdate(stripPrivate bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer next.ServeHTTP(w, r)

		var entries []string
		for _, entry := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				entries = append(entries, entry)
			}
		}

		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			entries = append(entries, host)
		}

		if stripPrivate {
			entries = slices.DeleteFunc(entries, func(entry string) bool {
				ip := net.ParseIP(entry)
				return ip == nil || !xff.IsPublicIP(ip)
			})
		}

		if len(entries) == 0 {
			r.Header.Del("X-Forwarded-For")
			return
		}

		r.Header.Set("X-Forwarded-For", strings.Join(entries, ","))
	})
}

// NoStoreCache sets the Cache-Control header to no-store for the response.
// Challenge media and tokens are single use.
func NoStoreCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
