package client

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (reset, unreachable, closed)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the gateway did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening at the address
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeGateway indicates the gateway answered {"ok":false,"err":...}
	ErrTypeGateway
	// ErrTypeParse indicates a line that is not valid JSON
	ErrTypeParse
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
	NetworkErrorClosed
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeGateway:
		return "Gateway Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ClientError represents an error talking to a gateway control channel
type ClientError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Address        string              // Gateway address (for context)
	Retryable      bool                // Whether the error is retryable
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ClientError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes an error and returns a more specific error type
func ClassifyNetworkError(err error, address string) *ClientError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &ClientError{
			Type:           ErrTypeTimeout,
			Message:        "Request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Address:        address,
			Retryable:      true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ClientError{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Address:        address,
			Retryable:      false,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &ClientError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Gateway refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Address:        address,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return &ClientError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Address:        address,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &ClientError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Address:        address,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err, address)
	}

	if errors.Is(err, net.ErrClosed) || errors.Is(err, ErrClosed) || websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return &ClientError{
			Type:           ErrTypeNetwork,
			Message:        "Connection closed",
			Err:            err,
			NetworkSubtype: NetworkErrorClosed,
			Address:        address,
			Retryable:      false,
		}
	}

	return &ClientError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Address:        address,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *ClientError {
	classified := ClassifyNetworkError(err, "")
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &ClientError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewTimeoutError creates an error for a request that got no answer
func NewTimeoutError(message string) *ClientError {
	return &ClientError{
		Type:           ErrTypeTimeout,
		Message:        message,
		NetworkSubtype: NetworkErrorTimeout,
		Retryable:      true,
	}
}

// NewGatewayError wraps the err text of an {"ok":false} response
func NewGatewayError(text string) *ClientError {
	return &ClientError{
		Type:      ErrTypeGateway,
		Message:   text,
		Retryable: false,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *ClientError {
	return &ClientError{
		Type:      ErrTypeParse,
		Message:   message,
		Err:       err,
		Retryable: false,
	}
}

func errorType(err error) (ErrorType, bool) {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type, true
	}
	return ErrTypeUnknown, false
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS)
func IsNetworkError(err error) bool {
	t, ok := errorType(err)
	return ok && (t == ErrTypeNetwork || t == ErrTypeTimeout || t == ErrTypeConnectionRefused || t == ErrTypeDNS)
}

// IsGatewayError checks if the gateway rejected the request
func IsGatewayError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeGateway
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeParse
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch clientErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The gateway did not respond in time.",
			"Troubleshooting:",
			"  • A wifi_connect blocks the gateway for up to 8 seconds; retry once it finishes",
			"  • Check that the gateway service is running: rs485gw serve",
			"  • Try increasing the timeout with --timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The gateway refused the connection.",
			"Troubleshooting:",
			"  • The socket channel only listens after a successful wifi_connect",
			"  • Use the pairing channel (ws://host:3334/ws) to send wifi_connect first",
			"  • Verify the port number (default is 3333)",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the gateway hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of hostname",
			"  • Run rs485ctl discover to find gateways on the local network",
		}, "\n")

	case ErrTypeNetwork:
		hint := []string{"Network communication failed."}

		switch clientErr.NetworkSubtype {
		case NetworkErrorClosed:
			hint = append(hint, "The gateway closed the connection.",
				"Only one socket client is served at a time; a newer client replaces the old one.")
		case NetworkErrorHostUnreachable:
			hint = append(hint, "The gateway is not reachable on the network.",
				"Troubleshooting:",
				"  • Verify the gateway address is correct",
				"  • Check that you're on the same network as the gateway")
		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check your network connection",
				"  • Verify the gateway is powered on")
		}
		return strings.Join(hint, "\n")

	case ErrTypeGateway:
		return fmt.Sprintf("The gateway rejected the request: %s", clientErr.Message)

	case ErrTypeParse:
		return "The gateway sent a line that is not valid JSON."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		return err.Error()
	}

	switch clientErr.Type {
	case ErrTypeTimeout:
		return "Gateway not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Gateway refused connection - is the socket listening?"
	case ErrTypeDNS:
		return "Cannot resolve gateway hostname"
	case ErrTypeNetwork:
		switch clientErr.NetworkSubtype {
		case NetworkErrorClosed:
			return "Connection closed by gateway"
		case NetworkErrorHostUnreachable:
			return "Gateway unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check WiFi connection"
		default:
			return "Network error - check connection"
		}
	case ErrTypeGateway:
		return "Gateway error: " + clientErr.Message
	case ErrTypeParse:
		return "Failed to parse gateway response"
	default:
		return clientErr.Message
	}
}
