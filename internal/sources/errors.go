package sources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"rankledger/internal/util"
)

type FaultType string

const (
	FaultTransient FaultType = "transient"
	FaultFatal     FaultType = "fatal"
)

func ClassifyError(err error) FaultType {
	if err == nil {
		return ""
	}
	switch {
	case util.IsFatal(err):
		return FaultFatal
	case util.IsTransient(err):
		return FaultTransient
	case errors.Is(err, context.Canceled):
		return FaultFatal
	case errors.Is(err, context.DeadlineExceeded):
		return FaultTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FaultTransient
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"),
		strings.Contains(e, "connection reset"), strings.Contains(e, "connection refused"), strings.Contains(e, "eof"),
		strings.Contains(e, "429"), strings.Contains(e, "invalid character"), strings.Contains(e, "unexpected end"):
		return FaultTransient
	default:
		return FaultFatal
	}
}

// ClassifyStatus maps a non-2xx HTTP status to a fault class.
func ClassifyStatus(code int) FaultType {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		return FaultTransient
	default:
		return FaultFatal
	}
}

// Classify tags err as transient or fatal if it is not tagged already.
func Classify(err error) error {
	if err == nil || util.IsTransient(err) || util.IsFatal(err) {
		return err
	}
	if ClassifyError(err) == FaultTransient {
		return util.Transient(err)
	}
	return util.Fatal(err)
}

func statusError(code int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	err := fmt.Errorf("unexpected status %d: %s", code, snippet)
	if ClassifyStatus(code) == FaultTransient {
		return util.Transient(err)
	}
	return util.Fatal(err)
}
