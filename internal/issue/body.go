package issue

import (
	"regexp"
	"strings"
)

const ActionRedeem = "redeem"

var fieldLine = regexp.MustCompile(`^([^:]+):\s*(.+)$`)

// ParseBody collects "key: value" lines. Keys are lower-cased, values
// trimmed; blank and unmatched lines are ignored and later keys win.
func ParseBody(body string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := fieldLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(m[1]))] = strings.TrimSpace(m[2])
	}
	return out
}

// Request is the redeem request carried by an issue body.
type Request struct {
	// Action is empty when the body does not name one.
	Action   string
	Username string
	HWID     string
	Code     string
}

func ParseRequest(body string) Request {
	f := ParseBody(body)
	return Request{
		Action:   strings.ToLower(f["action"]),
		Username: f["username"],
		HWID:     f["hwid"],
		Code:     f["code"],
	}
}

// Supported reports whether the request asks for something the handler
// does. A body without an action line is a redeem request.
func (r Request) Supported() bool {
	return r.Action == "" || r.Action == ActionRedeem
}
