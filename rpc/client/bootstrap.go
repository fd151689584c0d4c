package client

import (
	"fmt"
	"github.com/ValentinKolb/dkvs/lib/cluster"
	"github.com/ValentinKolb/dkvs/rpc/common"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// URLScheme is the only scheme accepted in bootstrap URLs of the socket transport
const URLScheme = "tcp"

// ValidateURL fails with *common.InvalidSchemeError unless u.Scheme is exactly
// URLScheme. url.Parse lower-cases the scheme, so a parsed "TCP://" passes here.
// Raw strings must go through ParseBootstrapURL, which checks the scheme as
// written.
func ValidateURL(u *url.URL) error {
	if u == nil {
		return &common.InvalidArgumentError{Arg: "url", Msg: "must not be nil"}
	}
	if u.Scheme != URLScheme {
		return &common.InvalidSchemeError{Expected: URLScheme, Actual: u.Scheme}
	}
	return nil
}

// ParseBootstrapURL parses scheme://host:port[,host:port...] into one URL per
// host. Every URL is validated with ValidateURL and must name a port.
func ParseBootstrapURL(raw string) ([]*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &common.InvalidArgumentError{Arg: "bootstrap URL", Msg: "must not be empty"}
	}

	scheme, hosts, found := strings.Cut(raw, "://")
	if !found {
		return nil, &common.InvalidSchemeError{Expected: URLScheme, Actual: ""}
	}
	// url.Parse lower-cases the scheme, check the raw token
	if scheme != URLScheme {
		return nil, &common.InvalidSchemeError{Expected: URLScheme, Actual: scheme}
	}

	var urls []*url.URL
	for _, host := range strings.Split(hosts, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}

		u, err := url.Parse(scheme + "://" + host)
		if err != nil {
			return nil, fmt.Errorf("invalid bootstrap URL %q: %w", raw, err)
		}
		if err := ValidateURL(u); err != nil {
			return nil, err
		}
		if _, err := portOf(u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}

	if len(urls) == 0 {
		return nil, &common.InvalidArgumentError{Arg: "bootstrap URL", Msg: fmt.Sprintf("%q names no host", raw)}
	}
	return urls, nil
}

// BootstrapTopology builds a static member list from bootstrap URLs. Node ids
// follow the order of the URLs, the URL port is used as socket port.
func BootstrapTopology(urls []*url.URL) (cluster.StaticTopology, error) {
	topo := make(cluster.StaticTopology, 0, len(urls))
	for i, u := range urls {
		if err := ValidateURL(u); err != nil {
			return nil, err
		}
		port, err := portOf(u)
		if err != nil {
			return nil, err
		}
		topo = append(topo, cluster.Node{ID: i, Host: u.Hostname(), SocketPort: port})
	}
	return topo, nil
}

// portOf returns the port of a host:port URL
func portOf(u *url.URL) (int, error) {
	_, p, err := net.SplitHostPort(u.Host)
	if err != nil {
		return 0, &common.InvalidArgumentError{Arg: "bootstrap URL", Msg: fmt.Sprintf("%s: %v", u, err)}
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, &common.InvalidArgumentError{Arg: "bootstrap URL", Msg: fmt.Sprintf("%s: invalid port %q", u, p)}
	}
	return port, nil
}
