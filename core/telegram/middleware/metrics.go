package middleware

import tele "gopkg.in/telebot.v4"

const (
	counterMessages  = "messages"
	counterKeyboard  = "kb"
	counterDocuments = "documents"
)

// countingContext wraps tele.Context to count replies for the handler summary log.
type countingContext struct{ tele.Context }

func (m countingContext) inc(what interface{}, opts []interface{}) {
	key := counterMessages
	if _, ok := what.(*tele.Document); ok {
		key = counterDocuments
	}
	n, _ := m.Get(key).(int)
	m.Set(key, n+1)
	if hasKeyboard(opts) {
		m.Set(counterKeyboard, true)
	}
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating counters.
func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.inc(what, opts)
	}
	return err
}

// Reply proxies tele.Context.Reply while updating counters.
func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.inc(what, opts)
	}
	return err
}

// MessageMetricsMiddleware counts replies and keyboard usage per update.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(counterMessages, 0)
		c.Set(counterDocuments, 0)
		c.Set(counterKeyboard, false)
		return next(countingContext{Context: c})
	}
}

// Counters reads the reply counters collected for the current update.
type Counters struct {
	Messages  int
	Documents int
	Keyboard  bool
}

// GetCounters returns the counters gathered by MessageMetricsMiddleware.
func GetCounters(c tele.Context) Counters {
	var out Counters
	out.Messages, _ = c.Get(counterMessages).(int)
	out.Documents, _ = c.Get(counterDocuments).(int)
	out.Keyboard, _ = c.Get(counterKeyboard).(bool)
	return out
}
