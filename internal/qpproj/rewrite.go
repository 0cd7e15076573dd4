package qpproj

import (
	"log/slog"
	"net/url"
	"strings"
)

// Rule rewrites one stored path prefix. Rules are configuration, not code:
// projects moved between machines carry whatever prefixes the old machine
// used.
type Rule struct {
	From string
	To   string
}

// ParseRules parses "from=>to[,from=>to...]" into rules, dropping malformed
// or empty pairs.
func ParseRules(s string) []Rule {
	var out []Rule
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=>", 2)
		if len(kv) != 2 {
			continue
		}
		from := strings.TrimSpace(kv[0])
		to := strings.TrimSpace(kv[1])
		if from == "" {
			continue
		}
		out = append(out, Rule{From: from, To: to})
	}
	return out
}

// RewriteURI applies the first rule whose From prefixes the URI's path
// component. The matched prefix is replaced exactly once and backslashes are
// normalized; everything else is left untouched.
func RewriteURI(raw string, rules []Rule) (string, bool) {
	if len(rules) == 0 || raw == "" {
		return raw, false
	}

	path := raw
	var u *url.URL
	if parsed, err := url.Parse(raw); err == nil && parsed.Scheme != "" {
		u = parsed
		path = parsed.Path
	}

	for _, r := range rules {
		if !strings.HasPrefix(path, r.From) {
			continue
		}
		np := strings.ReplaceAll(r.To+path[len(r.From):], `\`, "/")
		if u != nil {
			u.Path = np
			u.RawPath = ""
			return u.String(), true
		}
		return np, true
	}
	return raw, false
}

// RepairURIs walks every entry, rewrites matching stored URIs, and returns
// the number of URIs replaced. Per-entry failures are logged and skipped.
func RepairURIs(p *Project, rules []Rule, log *slog.Logger) int {
	if len(rules) == 0 {
		return 0
	}
	total := 0
	for _, e := range p.Images {
		uris := e.URIs()
		if len(uris) == 0 {
			continue
		}
		repl := make(map[string]string)
		for _, uri := range uris {
			if nu, changed := RewriteURI(uri, rules); changed {
				repl[uri] = nu
			}
		}
		if len(repl) == 0 {
			continue
		}
		n, err := e.UpdateURIs(repl)
		total += n
		if err != nil {
			log.Error("update stored URIs", "image", e.ImageName, "err", err)
			continue
		}
		log.Info("repaired stored URIs", "image", e.ImageName, "replaced", n)
	}
	return total
}
