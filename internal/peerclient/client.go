package peerclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/logging"
	"github.com/muurk/oscquery/internal/metrics"
	"github.com/muurk/oscquery/internal/oscjson"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// maxBodySize caps how much of a peer response is read
	maxBodySize = 8 << 20
)

// Document names used in logs and metrics.
const (
	DocumentHostInfo  = "host_info"
	DocumentNamespace = "namespace"
)

// Client fetches OSCQuery documents from peers over plain HTTP.
type Client struct {
	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// Metrics records fetches and failures (nil is fine)
	Metrics *metrics.Metrics

	// Logger receives fetch traces (nil selects the package logger)
	Logger *zap.Logger
}

// New creates a client whose requests time out after timeout. A zero timeout
// leaves the HTTP client without one.
func New(timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		Metrics:    m,
	}
}

// HostInfoURL returns the HOST_INFO URL of the peer's HTTP endpoint.
func HostInfoURL(peer netip.AddrPort) string {
	return fmt.Sprintf("http://%s/?HOST_INFO", peer)
}

// NamespaceURL returns the namespace root URL of the peer's HTTP endpoint.
func NamespaceURL(peer netip.AddrPort) string {
	return fmt.Sprintf("http://%s/", peer)
}

// FetchHostInfo retrieves and decodes the peer's HOST_INFO document.
// A missing OSC_PORT is a shape error.
func (c *Client) FetchHostInfo(ctx context.Context, peer netip.AddrPort) (*oscjson.HostInfo, error) {
	url := HostInfoURL(peer)

	body, err := c.get(ctx, url, DocumentHostInfo)
	if err != nil {
		return nil, err
	}

	info, err := oscjson.DecodeHostInfo(body)
	if err != nil {
		var peerErr *PeerError
		if errors.Is(err, oscjson.ErrMissingOSCPort) {
			peerErr = NewShapeError(url, "no OSC port found", err)
		} else {
			peerErr = NewParseError(url, "failed to parse host info", err)
		}
		return nil, c.failed(DocumentHostInfo, peerErr)
	}

	return info, nil
}

// FetchOSCEndpoint retrieves the peer's HOST_INFO and returns the endpoint it
// receives OSC on.
func (c *Client) FetchOSCEndpoint(ctx context.Context, peer netip.AddrPort) (netip.AddrPort, error) {
	info, err := c.FetchHostInfo(ctx, peer)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return OSCEndpoint(info, peer.Addr()), nil
}

// OSCEndpoint combines OSC_IP and OSC_PORT. When OSC_IP is missing, invalid
// or unspecified, the address the document was fetched from is used instead.
func OSCEndpoint(info *oscjson.HostInfo, fetchedFrom netip.Addr) netip.AddrPort {
	addr, err := netip.ParseAddr(info.OSCIP)
	if err != nil || addr.IsUnspecified() {
		addr = fetchedFrom
	}
	return netip.AddrPortFrom(addr.Unmap(), info.OSCPort)
}

// FetchNamespace retrieves and decodes the peer's namespace tree.
func (c *Client) FetchNamespace(ctx context.Context, peer netip.AddrPort) (oscjson.Node, error) {
	url := NamespaceURL(peer)

	body, err := c.get(ctx, url, DocumentNamespace)
	if err != nil {
		return nil, err
	}

	root, err := oscjson.DecodeNode(body)
	if err != nil {
		return nil, c.failed(DocumentNamespace, NewParseError(url, "failed to parse namespace", err))
	}

	return root, nil
}

// FetchSnapshot retrieves the peer's namespace tree and flattens its avatar
// parameters.
func (c *Client) FetchSnapshot(ctx context.Context, peer netip.AddrPort) (*Snapshot, error) {
	root, err := c.FetchNamespace(ctx, peer)
	if err != nil {
		return nil, err
	}

	snapshot, err := Flatten(peer, root)
	if err != nil {
		return nil, c.failed(DocumentNamespace, NewShapeError(NamespaceURL(peer), "no parameters found", err))
	}

	return snapshot, nil
}

// get performs a single GET and returns the body of a 2xx answer
func (c *Client) get(ctx context.Context, url, document string) ([]byte, error) {
	logging.LogPeerFetch(c.logger(), url, document)
	c.Metrics.PeerFetch(document)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, c.failed(document, ClassifyNetworkError(err, url))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, c.failed(document, ClassifyNetworkError(err, url))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.failed(document, NewHTTPError(url, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.failed(document, ClassifyNetworkError(err, url))
	}

	return body, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

// failed records a fetch failure and hands the error back
func (c *Client) failed(document string, err *PeerError) error {
	c.Metrics.PeerFetchFailure(document, err.Type.String())
	c.logger().Debug("Peer fetch failed",
		zap.String("document", document),
		zap.String("url", err.URL),
		zap.String("type", err.Type.String()),
		zap.Error(err.Err),
	)
	return err
}

func (c *Client) logger() *zap.Logger {
	return logging.OrGlobal(c.Logger, "peerclient")
}
