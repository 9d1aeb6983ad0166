package http

import (
	"crypto/tls"
	"net"
	"time"
)

type HttpClientOpt = func(clientCfg *HttpClient)

func AddDialContext(httpClient *HttpClient) {
	dialContext := (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 10 * time.Second,
	}).DialContext

	httpClient.Transport.DialContext = dialContext
	httpClient.Client.Transport = httpClient.Transport
}

// WithTimeout bounds every request, including reading the body.
func WithTimeout(timeout time.Duration) HttpClientOpt {
	return func(httpClient *HttpClient) {
		httpClient.Client.Timeout = timeout
	}
}

func WithHttps(tlsConfig *tls.Config) HttpClientOpt {
	return func(httpClient *HttpClient) {
		httpClient.expectHttpsScheme = true
		httpClient.Transport.TLSClientConfig = tlsConfig
	}
}
