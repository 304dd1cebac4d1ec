package prober

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/linkwatch/linkwatch/pkg/types"
)

// HTTPChecker issues a single GET and classifies the response code.
type HTTPChecker struct {
	scheme string
	client *http.Client
}

// NewHTTPChecker returns a checker for scheme ("http" or "https").
// Redirects are not followed; a 3xx is already a sign of life.
func NewHTTPChecker(scheme string, insecureSkipVerify bool) *HTTPChecker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec
	}
	// Each check dials fresh so latency includes connection setup.
	transport.DisableKeepAlives = true

	return &HTTPChecker{
		scheme: scheme,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *HTTPChecker) Check(ctx context.Context, svc types.ServiceConfig) types.CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(svc), nil)
	if err != nil {
		return errorResult(err.Error())
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return timeoutResult("Request timed out")
		}
		return errorResult(err.Error())
	}
	latency := time.Since(start)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	var res types.CheckResult
	if resp.StatusCode < 400 {
		res = upResult(latency)
	} else {
		res = downResult(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	if resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		days := int(math.Floor(time.Until(resp.TLS.PeerCertificates[0].NotAfter).Hours() / 24))
		res.CertDaysLeft = &days
	}
	return res
}

// url builds scheme://target:port. Targets are plain hosts; the scheme
// always comes from the checker.
func (c *HTTPChecker) url(svc types.ServiceConfig) string {
	return c.scheme + "://" + net.JoinHostPort(svc.Target, strconv.Itoa(svc.EffectivePort()))
}
