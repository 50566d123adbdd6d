package handler

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	youtubeIDPattern      = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)
	videoEmbedTimePattern = regexp.MustCompile(`(?i)(\d+)(h|m|s)`) // t=1h2m3s
)

// youtubeEmbedURL converts a watch, short, live or youtu.be link into a
// youtube-nocookie embed URL.
func youtubeEmbedURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Hostname() == "" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	var videoID string
	switch {
	case host == "youtu.be":
		videoID = firstSegment(strings.TrimPrefix(u.Path, "/"))
	case isHostOrSubdomain(host, "youtube.com"):
		path := strings.Trim(u.Path, "/")
		switch {
		case path == "watch":
			videoID = u.Query().Get("v")
		case strings.HasPrefix(path, "shorts/"):
			videoID = firstSegment(strings.TrimPrefix(path, "shorts/"))
		case strings.HasPrefix(path, "embed/"):
			videoID = firstSegment(strings.TrimPrefix(path, "embed/"))
		case strings.HasPrefix(path, "live/"):
			videoID = firstSegment(strings.TrimPrefix(path, "live/"))
		}
	default:
		return "", false
	}

	if !youtubeIDPattern.MatchString(videoID) {
		return "", false
	}

	values := url.Values{}
	values.Set("rel", "0")
	values.Set("modestbranding", "1")
	values.Set("playsinline", "1")
	if start := youtubeStart(u); start > 0 {
		values.Set("start", strconv.Itoa(start))
	}
	return fmt.Sprintf("https://www.youtube-nocookie.com/embed/%s?%s", videoID, values.Encode()), true
}

func youtubeStart(u *url.URL) int {
	query := u.Query()
	value := query.Get("start")
	if value == "" {
		value = query.Get("t")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return seconds
		}
		return 0
	}

	total := 0
	for _, match := range videoEmbedTimePattern.FindAllStringSubmatch(value, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n <= 0 {
			continue
		}
		switch strings.ToLower(match[2]) {
		case "h":
			total += n * 3600
		case "m":
			total += n * 60
		case "s":
			total += n
		}
	}
	return total
}

func firstSegment(path string) string {
	if idx := strings.Index(path, "/"); idx >= 0 {
		return path[:idx]
	}
	return path
}

func isHostOrSubdomain(host, domain string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	domain = strings.ToLower(strings.TrimSpace(domain))
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
