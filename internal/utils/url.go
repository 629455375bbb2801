package utils

import (
	"errors"
	"net/url"
	"strings"
)

// NormalizeURL trims input and checks that it is an absolute http(s) URL.
// An empty input is returned unchanged.
func NormalizeURL(input string) (string, error) {
	link := strings.TrimSpace(input)

	if link == "" {
		return "", nil
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return "", errors.New("invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", errors.New("URL must use http or https")
	}

	if parsedURL.Hostname() == "" {
		return "", errors.New("no hostname found in URL")
	}

	return link, nil
}
