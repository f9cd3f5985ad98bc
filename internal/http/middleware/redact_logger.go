// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// RedactingLogger writes one structured access line per request. Bodies are
// never logged. Credentials in headers and in the key/token query parameters
// are masked; e-mail addresses and phone numbers left in query strings or
// headers are scrubbed, since customer contact details do reach the CRM.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// RedactOptions adds header names and query parameters to mask on top of
// the built-in ones.
type RedactOptions struct {
	MaskHeaders []string
	MaskQuery   []string
}

var (
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// digits only, so hex ids are left alone
	phoneRE = regexp.MustCompile(`(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{3,4}\)?[ .-]?)\d{3}[ .-]?\d{2}[ .-]?\d{2}\b`)
)

func scrub(s string) string {
	if s == "" {
		return s
	}
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger logs method, route, masked query and headers, status,
// size and latency. 4xx log at warn and 5xx at error. It also attaches the
// request-scoped logger returned by LoggerFrom.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization":                       {},
		"cookie":                              {},
		"set-cookie":                          {},
		strings.ToLower(HeaderCRMToken):       {},
		strings.ToLower(HeaderWebhookKey):     {},
		strings.ToLower(HeaderIdempotencyKey): {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	maskQuery := map[string]struct{}{"key": {}, "token": {}}
	for _, q := range opts.MaskQuery {
		if q = strings.ToLower(strings.TrimSpace(q)); q != "" {
			maskQuery[q] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		attachLogger(c, path)

		query := redactQuery(c.Request.URL.RawQuery, maskQuery)
		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = scrub(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		lg := LoggerFrom(c)
		ev := lg.Info()
		switch {
		case status >= 500:
			ev = lg.Error()
		case status >= 400:
			ev = lg.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("remote_ip", c.ClientIP()).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// redactQuery masks the values of sensitive parameters and scrubs the rest.
// Unparseable queries are scrubbed as a whole.
func redactQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return scrub(raw)
	}
	for k, vv := range vals {
		if _, ok := mask[strings.ToLower(k)]; ok {
			vals[k] = []string{"[REDACTED]"}
			continue
		}
		for i := range vv {
			vv[i] = scrub(vv[i])
		}
	}
	return vals.Encode()
}
