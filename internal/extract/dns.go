package extract

import (
	"flowlab.dev/flowlab/internal/view"
	"github.com/miekg/dns"
)

// peekDNSQName best-effort-parses the remainder of c as a DNS message and
// returns the first question's name. This is a diagnostic-only supplemental
// feature (DESIGN.md): it never contributes to the flow key or the 14-slot
// feature vector, and a parse failure is silently ignored — a malformed DNS
// guess must never make the extractor itself report Truncated/Inconsistent.
func peekDNSQName(c *view.Cursor) (string, bool) {
	payload, err := c.PeekBytes(c.Bytes())
	if err != nil || len(payload) == 0 {
		return "", false
	}

	var msg dns.Msg
	if err := msg.Unpack(payload); err != nil {
		return "", false
	}
	if len(msg.Question) == 0 {
		return "", false
	}
	return msg.Question[0].Name, true
}
