// MIT License
//
// Copyright (c) 2024 rescache
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package api

import (
	"net/http"
	"net/netip"
	"strings"
)

var defaultBlockedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
})

// IPFilter implements a simple IP filter. It is configured with an access
// control list containing IPs that are allowed to access the specified
// resource. If the list of allowed IPs is empty, any request is allowed
// and bypasses the filter.
type IPFilter struct {
	// allowedIPs is the list of IPs allowed to access a resource.
	// If empty, the IP filter is disabled and every request is allowed.
	allowedIPs map[netip.Addr]struct{}
}

// NewIPFilter creates a new IP filter from a comma-separated allow-list.
func NewIPFilter(whitelist string) *IPFilter {
	f := &IPFilter{
		allowedIPs: make(map[netip.Addr]struct{}),
	}

	if ips := strings.Trim(whitelist, ","); len(ips) > 0 {
		for _, ip := range strings.Split(ips, ",") {
			if addr, err := netip.ParseAddr(strings.TrimSpace(ip)); err == nil {
				f.allowedIPs[addr] = struct{}{}
			}
		}
	}

	return f
}

// Wrap wraps the specified handler with the IP filter. It allows or
// blocks the request according to the originating IP. If the list of
// allowed IPs is empty, any request bypasses the filter.
func (f *IPFilter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(f.allowedIPs) == 0 {
			next(w, r)
			return
		}

		ip, err := originalIP(r)
		if err != nil {
			defaultBlockedHandler.ServeHTTP(w, r)
			return
		}

		if !f.IsAllowed(ip) {
			defaultBlockedHandler.ServeHTTP(w, r)
			return
		}

		next(w, r)
	}
}

// IsAllowed checks if the given IP is allowed.
func (f *IPFilter) IsAllowed(ip netip.Addr) bool {
	_, ok := f.allowedIPs[ip]
	return ok
}

// originalIP finds the originating client IP.
func originalIP(req *http.Request) (netip.Addr, error) {
	// The default is the remote address, but a forwarding header is
	// almost always the better source.
	addr := ""
	if parts := strings.Split(req.RemoteAddr, ":"); len(parts) == 2 {
		addr = parts[0]
	}

	// If we have a forwarded-for header, take the address from there.
	if xff := strings.Trim(req.Header.Get("X-Forwarded-For"), ","); len(xff) > 0 {
		addrs := strings.Split(xff, ",")
		last := addrs[len(addrs)-1]
		return netip.ParseAddr(strings.TrimSpace(last))
	}

	// Otherwise, parse the X-Real-Ip header if it exists.
	if xri := req.Header.Get("X-Real-Ip"); len(xri) > 0 {
		return netip.ParseAddr(xri)
	}

	return netip.ParseAddr(addr)
}
