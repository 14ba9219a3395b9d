package services

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidReferrerToken = errors.New("invalid referrer token")

// LinkBuilder produces deep links of the form <base><bot>?start=<user id>.
type LinkBuilder struct {
	Base        string
	BotUsername string
}

func NewLinkBuilder(base, botUsername string) LinkBuilder {
	if base == "" {
		base = "https://t.me/"
	}
	return LinkBuilder{
		Base:        strings.TrimSuffix(base, "/") + "/",
		BotUsername: strings.TrimPrefix(botUsername, "@"),
	}
}

func (b LinkBuilder) Link(userID int64) string {
	return b.Base + b.BotUsername + "?start=" + strconv.FormatInt(userID, 10)
}

// ParseReferrerToken reverses Link: the token is the decimal user id.
func ParseReferrerToken(token string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
	if err != nil {
		return 0, ErrInvalidReferrerToken
	}
	return id, nil
}
