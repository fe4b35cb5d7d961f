package usecase

import (
	"fmt"
	"strings"
)

// Start payload prefixes carried by t.me deep links.
const (
	PayloadResourcePrefix = "terabox-"
	PayloadReferralPrefix = "reffer-"
)

// DeepLink builds the t.me link that opens the bot with /start <payload>.
func DeepLink(botUsername, payload string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(botUsername, "@"), payload)
}
