package driver

import (
	"bufio"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Container is one row of `docker compose ps --format json`.
type Container struct {
	ID       string `json:"ID"`
	Name     string `json:"Name"`
	Service  string `json:"Service"`
	State    string `json:"State"`
	ExitCode int    `json:"ExitCode"`
}

// ParsePS accepts both output shapes docker compose has used: a single JSON
// array, or one JSON object per line.
func ParsePS(out string) ([]Container, error) {
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return nil, nil
	}
	var list []Container
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
			return nil, fmt.Errorf("parse compose ps: %w", err)
		}
	} else {
		sc := bufio.NewScanner(strings.NewReader(trimmed))
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var c Container
			if err := json.Unmarshal([]byte(line), &c); err != nil {
				return nil, fmt.Errorf("parse compose ps: %w", err)
			}
			list = append(list, c)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// Match returns the first container whose service or container name matches re.
func Match(list []Container, re *regexp.Regexp) (Container, bool) {
	for _, c := range list {
		if re.MatchString(c.Service) || re.MatchString(c.Name) {
			return c, true
		}
	}
	return Container{}, false
}

// byService returns the first container running the named service.
func byService(list []Container, service string) (Container, bool) {
	for _, c := range list {
		if c.Service == service || c.Name == service {
			return c, true
		}
	}
	return Container{}, false
}
