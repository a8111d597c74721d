package fetch

import (
	"errors"
	"strings"
)

// Kind classifies a failed network fetch so the UI can distinguish quota
// exhaustion from outages from everything else.
type Kind int

const (
	KindOther Kind = iota
	KindQuota
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindQuota:
		return "quota"
	case KindUnavailable:
		return "unavailable"
	default:
		return "other"
	}
}

// statusCoder matches typed HTTP errors such as httpx.StatusError without
// importing the transport package.
type statusCoder interface {
	StatusCode() int
}

var quotaKeywords = []string{
	"quota",
	"rate limit",
	"daily limit",
	"forbidden",
	"403",
	"too many requests",
	"429",
}

var unavailableKeywords = []string{
	"service unavailable",
	"server error",
	"maintenance",
	"500",
	"502",
	"503",
	"network error",
	"connection refused",
	"no such host",
	"timeout",
	"failed to fetch",
}

// Classify maps a fetch error onto a Kind. Typed status codes win; message
// keyword matching covers providers that only surface text.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch code := sc.StatusCode(); {
		case code == 403 || code == 429:
			return KindQuota
		case code >= 500:
			return KindUnavailable
		}
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range quotaKeywords {
		if strings.Contains(msg, keyword) {
			return KindQuota
		}
	}
	for _, keyword := range unavailableKeywords {
		if strings.Contains(msg, keyword) {
			return KindUnavailable
		}
	}
	return KindOther
}

// notice renders the user-visible explanation attached to a degraded result.
func notice(kind Kind, usedDefault bool) string {
	suffix := "Showing cached data."
	if usedDefault {
		suffix = "Showing sample data."
	}
	switch kind {
	case KindQuota:
		return "Daily API limit reached. " + suffix
	case KindUnavailable:
		return "Service temporarily unavailable. " + suffix
	default:
		return "Unable to fetch latest data. " + suffix
	}
}
