package helpers

import (
	"bytes"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/logger"
)

// SendText sends plain text to the current chat with optional markup.
func SendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	var err error
	if markup != nil {
		err = c.Send(text, markup)
	} else {
		err = c.Send(text)
	}
	if err != nil {
		logSendFailure(c, "send.text", err)
	}
	return err
}

// SendDocument uploads data as a named file to the current chat.
func SendDocument(c tele.Context, fileName string, data []byte, caption string) error {
	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(data)),
		FileName: fileName,
		Caption:  caption,
	}
	err := c.Send(doc)
	if err != nil {
		logSendFailure(c, "send.document", err)
	}
	return err
}

func logSendFailure(c tele.Context, action string, err error) {
	ctx := BuildContext(c)
	logger.Warn(ctx, "tg", "send.fail",
		slog.String("action", action),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}
