package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "delivery_counters"

// counters tracks what a handler sent in reply to one update. Deliveries made
// by dispatcher workers are added through RecordDelivery.
type counters struct {
	messages atomic.Int64
	keyboard atomic.Bool
}

func (n *counters) add(messages int, hasKB bool) {
	n.messages.Add(int64(messages))
	if hasKB {
		n.keyboard.Store(true)
	}
}

func countersOf(c tele.Context) *counters {
	if c == nil {
		return nil
	}
	n, _ := c.Get(countersKey).(*counters)
	return n
}

// metricsContext counts successful sends made through the tele.Context.
type metricsContext struct {
	tele.Context
	n *counters
}

func (m metricsContext) counted(err error, opts []interface{}) error {
	if err == nil {
		m.n.add(1, hasKeyboard(opts))
	}
	return err
}

// Send proxies tele.Context.Send.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	return m.counted(m.Context.Send(what, opts...), opts)
}

// Reply proxies tele.Context.Reply.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	return m.counted(m.Context.Reply(what, opts...), opts)
}

// Edit proxies tele.Context.Edit. Edits count as responses.
func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	return m.counted(m.Context.Edit(what, opts...), opts)
}

// EditOrSend proxies tele.Context.EditOrSend.
func (m metricsContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.counted(m.Context.EditOrSend(what, opts...), opts)
}

// EditOrReply proxies tele.Context.EditOrReply.
func (m metricsContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return m.counted(m.Context.EditOrReply(what, opts...), opts)
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

// MessageMetricsMiddleware attaches fresh counters to every update.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &counters{}
		c.Set(countersKey, n)
		return next(metricsContext{Context: c, n: n})
	}
}

// RecordDelivery adds messages sent outside tele.Context (for example through
// the outbound dispatcher) to the counters reported in handler summaries.
func RecordDelivery(c tele.Context, messages int, hasKB bool) {
	if messages <= 0 {
		return
	}
	if n := countersOf(c); n != nil {
		n.add(messages, hasKB)
	}
}

// GetCounters returns the message count and whether any reply carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n := countersOf(c)
	if n == nil {
		return 0, false
	}
	return int(n.messages.Load()), n.keyboard.Load()
}
