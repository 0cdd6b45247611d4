package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapSerialError wraps serial port errors with user-friendly context
func WrapSerialError(err error, port string, baud int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to use serial port %s at %d baud", port, baud),
		Reason:  extractSerialReason(err),
		Hint:    "Check that the RS485 adapter is plugged in and no other program holds the port",
		Try:     "rs485mon monitor --list-ports",
		Err:     err,
	}
}

// WrapCaptureError wraps capture file errors with user-friendly context
func WrapCaptureError(err error, path string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Cannot read capture %s", path),
		Reason:  extractCaptureReason(err),
		Hint:    "Captures are written by 'rs485mon monitor --write'; raw dumps are parsed with --raw",
		Try:     fmt.Sprintf("rs485mon stats %s", path),
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Run the wizard to create a valid file",
		Try:     fmt.Sprintf("rs485mon config init --config %s", configPath),
		Err:     err,
	}
}

// WrapUploadError wraps capture upload errors with user-friendly context
func WrapUploadError(err error, destination string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to upload captures to %s", destination),
		Reason:  extractUploadReason(err),
		Hint:    "SSH destinations use the agent or ?key=/path/to/key; host keys come from ~/.ssh/known_hosts",
		Try:     "rs485mon upload --to /local/archive <files>",
		Err:     err,
	}
}

func extractSerialReason(err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case stderrors.Is(err, os.ErrNotExist) || strings.Contains(errStr, "not found") || strings.Contains(errStr, "no such file"):
		return "Serial port not found - adapter may be unplugged or the name is wrong"
	case stderrors.Is(err, os.ErrPermission) || strings.Contains(errStr, "permission denied"):
		return "Permission denied - user may need to be in the dialout group"
	case strings.Contains(errStr, "busy"):
		return "Serial port busy - another program is using it"
	case strings.Contains(errStr, "invalid serial port") || strings.Contains(errStr, "baud"):
		return "Unsupported port settings"
	}

	return "Serial communication failed"
}

func extractCaptureReason(err error) string {
	errStr := err.Error()

	switch {
	case stderrors.Is(err, os.ErrNotExist):
		return "File does not exist"
	case strings.Contains(errStr, "invalid file format"):
		return "File is not an rs485mon capture (header mismatch)"
	case strings.Contains(errStr, "end tag not found"):
		return "Capture is truncated or corrupted"
	}

	return "Capture could not be decoded"
}

func extractUploadReason(err error) string {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "traversal"):
		return "Destination path escapes the target directory"
	case strings.Contains(errStr, "no authentication methods"):
		return "No SSH credentials available"
	case strings.Contains(errStr, "known hosts") || strings.Contains(errStr, "knownhosts"):
		return "Host key could not be verified"
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return "Connection timeout - host may be offline or unreachable"
	case strings.Contains(errStr, "connection refused"):
		return "Connection refused - SSH may not be running on that port"
	}

	return "Transfer failed"
}
