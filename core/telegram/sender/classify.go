package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/logger"
)

// errorKinds are checked in order; the first match names the error_kind field.
var errorKinds = []struct {
	kind  string
	match func(error) bool
}{
	{"timeout", func(err error) bool {
		var ne net.Error
		return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
	}},
	{"unreachable", func(err error) bool {
		return errors.Is(err, tele.ErrBlockedByUser) ||
			errors.Is(err, tele.ErrUserIsDeactivated) ||
			errors.Is(err, tele.ErrChatNotFound)
	}},
	{"dns", func(err error) bool {
		var de *net.DNSError
		return errors.As(err, &de)
	}},
	{"dial", func(err error) bool {
		var oe *net.OpError
		return errors.As(err, &oe) && oe.Op == "dial"
	}},
	{"tls", func(err error) bool {
		var ae tls.AlertError
		return errors.As(err, &ae)
	}},
	{"flood", func(err error) bool {
		var fe tele.FloodError
		return errors.As(err, &fe) || apiCode(err) == http.StatusTooManyRequests
	}},
	{"http_5xx", func(err error) bool { return apiCode(err) >= 500 }},
	{"http_4xx", func(err error) bool { return apiCode(err) >= 400 }},
}

func apiCode(err error) int {
	var te *tele.Error
	if errors.As(err, &te) {
		return te.Code
	}
	return 0
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if k.match(err) {
			return k.kind
		}
	}
	return "unknown"
}

func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return logger.RedactToken(err.Error())
}
