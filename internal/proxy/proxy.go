// Package proxy validates, persists and loads the proxy endpoints used by the page fetcher.
//
// Candidate lists are plain "host:port" files named after their protocol. [Pool.Refresh] checks every
// candidate in parallel against a module's reachable URL and overwrites the module's survivor file;
// [Pool.Load] returns the last survivors without checking them again.
package proxy

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/wlsync/internal/shared"
	xproxy "golang.org/x/net/proxy"
)

// Proxy is one endpoint with its dial protocol.
type Proxy struct {
	Protocol string
	Addr     string
}

func (p Proxy) String() string {
	return p.Protocol + "://" + p.Addr
}

// Parse reads "protocol://host:port". A bare "host:port" takes the fallback protocol.
func Parse(s, fallback string) (Proxy, error) {
	s = strings.TrimSpace(s)
	protocol, addr, ok := strings.Cut(s, "://")
	if !ok {
		protocol, addr = fallback, s
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return Proxy{}, fmt.Errorf("%w: proxy %q", shared.ErrInvalidInput, s)
	}
	return Proxy{Protocol: strings.ToLower(protocol), Addr: addr}, nil
}

// Transport builds an [http.Transport] that dials through p.
//
// socks5 goes through golang.org/x/net/proxy; http and https use the standard proxy support.
func Transport(p Proxy, timeout time.Duration) (*http.Transport, error) {
	base := &net.Dialer{Timeout: timeout}
	t := &http.Transport{
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableKeepAlives:     true,
	}

	switch p.Protocol {
	case "socks5", "socks5h":
		dialer, err := xproxy.SOCKS5("tcp", p.Addr, nil, base)
		if err != nil {
			return nil, fmt.Errorf("failed to build socks5 dialer: %w", err)
		}
		cd, ok := dialer.(xproxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("%w: socks5 dialer without context support", shared.ErrNotSupported)
		}
		t.DialContext = cd.DialContext
	case "http", "https":
		u, err := url.Parse(p.String())
		if err != nil {
			return nil, fmt.Errorf("%w: proxy %s", shared.ErrInvalidInput, p)
		}
		t.Proxy = http.ProxyURL(u)
		t.DialContext = base.DialContext
	default:
		return nil, fmt.Errorf("%w: proxy protocol %q", shared.ErrNotSupported, p.Protocol)
	}
	return t, nil
}
