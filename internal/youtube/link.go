package youtube

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var ErrInvalidLinkFormat = errors.New("invalid youtube link")

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var watchHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
}

// ExtractVideoID returns the 11 character video id carried by a YouTube
// link. Supported shapes are watch?v=, /embed/, /v/, /shorts/ and youtu.be
// short links, with or without a scheme.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidLinkFormat
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidLinkFormat
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidLinkFormat
	}
	if u.Port() != "" || u.User != nil {
		return "", ErrInvalidLinkFormat
	}

	host := strings.ToLower(u.Hostname())
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch {
	case host == "youtu.be":
		if len(segments) != 1 {
			return "", ErrInvalidLinkFormat
		}
		id = segments[0]
	case watchHosts[host]:
		switch {
		case len(segments) == 1 && segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) == 2 && (segments[0] == "embed" || segments[0] == "v" || segments[0] == "shorts"):
			id = segments[1]
		default:
			return "", ErrInvalidLinkFormat
		}
	default:
		return "", ErrInvalidLinkFormat
	}

	if !videoIDPattern.MatchString(id) {
		return "", ErrInvalidLinkFormat
	}
	return id, nil
}
