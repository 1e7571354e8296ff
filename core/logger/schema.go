package logger

import (
	"log/slog"
	"strings"
)

// levelName renders slog levels the way log lines spell them.
func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	}
	return "ERROR"
}

// statusAliases folds synonyms onto the closed status vocabulary used in dashboards.
var statusAliases = map[string]string{
	"ok":           "ok",
	"success":      "ok",
	"fail":         "fail",
	"failed":       "fail",
	"error":        "fail",
	"skip":         "skip",
	"skipped":      "skip",
	"retry":        "retry",
	"rate_limited": "rate_limited",
	"cancelled":    "cancelled",
	"canceled":     "cancelled",
}

func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if mapped, ok := statusAliases[status]; ok {
		return mapped
	}
	return status
}

// defaultKeyOrder puts identity and correlation first, then domain fields, then errors.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"state",
	"cb_key",
	"kind",
	"duration_ms",
	"apartment",
	"meter_type",
	"serial",
	"new_serial",
	"period",
	"value",
	"joined",
	"policy",
	"count",
	"bytes",
	"run_id",
	"sent",
	"failed",
	"payload",
	"username",
	"mode",
	"listen",
	"public_url",
	"driver",
	"from_ver",
	"to_ver",
	"err",
	"err_code",
	"error_kind",
	"cause",
	"attempts",
}
