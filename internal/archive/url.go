package archive

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"dandi-batch/internal/common"
)

var dandisetIDRe = regexp.MustCompile(`^\d{6}$`)

// ParseDandisetURL acepta:
//
//	000939
//	000939@0.240327.2229
//	DANDI:000939/0.240327.2229
//	https://dandiarchive.org/dandiset/000939[/0.240327.2229]
//	https://dandiarchive.org/dandiset/000939/draft/files
func ParseDandisetURL(raw string) (common.Dandiset, error) {
	s := strings.TrimSpace(raw)

	if id, version, ok := strings.Cut(s, "@"); ok {
		return validate(id, version, raw)
	}

	if len(s) > 6 && strings.EqualFold(s[:6], "DANDI:") {
		id, version, _ := strings.Cut(s[6:], "/")
		return validate(id, version, raw)
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return common.Dandiset{}, fmt.Errorf("url de dandiset invalida %q: %w", raw, err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i, p := range parts {
			if p != "dandiset" && p != "dandisets" {
				continue
			}
			if i+1 >= len(parts) {
				break
			}
			version := ""
			if i+2 < len(parts) && parts[i+2] != "versions" {
				version = parts[i+2]
			} else if i+3 < len(parts) && parts[i+2] == "versions" {
				version = parts[i+3]
			}
			return validate(parts[i+1], version, raw)
		}
		return common.Dandiset{}, fmt.Errorf("la url %q no apunta a un dandiset", raw)
	}

	return validate(s, "", raw)
}

func validate(id, version, raw string) (common.Dandiset, error) {
	if !dandisetIDRe.MatchString(id) {
		return common.Dandiset{}, fmt.Errorf("identificador de dandiset invalido en %q", raw)
	}
	return common.Dandiset{Identifier: id, Version: version}, nil
}
