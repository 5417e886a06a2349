package client

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents HTTP 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures other than DNS.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDNS represents name resolution / connectivity failures,
	// kept distinct so operators can tell a dead link from a broken call.
	ErrorClassDNS ErrorClass = "dns"
)

// APIError is a classified Wildberries API failure.
type APIError struct {
	Endpoint   string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wb %s error on %s (status %d): %s: %v",
			e.Class, e.Endpoint, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("wb %s error on %s (status %d): %s",
		e.Class, e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyTransportError separates DNS/connectivity failures from other
// transport failures.
func classifyTransportError(err error) ErrorClass {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorClassDNS
	}

	msg := err.Error()
	if strings.Contains(msg, "no such host") || strings.Contains(msg, "connection refused") {
		return ErrorClassDNS
	}

	return ErrorClassNetwork
}

// ClassifyStatus categorizes an HTTP status code.
func ClassifyStatus(code int) ErrorClass {
	switch {
	case code == 429:
		return ErrorClassRateLimit
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
