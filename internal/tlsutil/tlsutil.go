// Package tlsutil 为网关与下载使用的 HTTP 客户端提供统一的 TLS 加固。
// 安全加固：TLS 1.2+，仅 AEAD 密码套件。
package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// DefaultTLSConfig returns a hardened TLS configuration.
// MinVersion TLS 1.2, AEAD-only cipher suites.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// TransportOptions 连接层参数
type TransportOptions struct {
	// 拨号超时
	DialTimeout time.Duration
	// 等待响应头的超时，0 表示不限制（长轮询与大文件下载由 ctx 控制）
	ResponseHeaderTimeout time.Duration
	// 每个主机保留的空闲连接数
	MaxIdleConnsPerHost int
}

// DefaultTransportOptions 返回默认连接层参数
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		DialTimeout:           30 * time.Second,
		ResponseHeaderTimeout: 0,
		MaxIdleConnsPerHost:   8,
	}
}

// SecureTransport returns an http.Transport with TLS hardening.
// 代理从 HTTPS_PROXY / NO_PROXY 环境变量读取。
func SecureTransport(opts TransportOptions) *http.Transport {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 30 * time.Second
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 8
	}
	return &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: DefaultTLSConfig(),
		DialContext: (&net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// SecureHTTPClient returns an http.Client with TLS hardening.
// 不设置整体超时：JSON 调用的超时由调用方按请求设置，
// 下载可能持续很久，只受 ctx 控制。
func SecureHTTPClient() *http.Client {
	return &http.Client{
		Transport: SecureTransport(DefaultTransportOptions()),
	}
}
