package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nkotelnikov/telesweep/internal/prompt"
	"github.com/nkotelnikov/telesweep/internal/secret"
)

// nonEmptyValidator accepts any non-blank reply.
func nonEmptyValidator(retryMsg string) prompt.Validator {
	return func(input string) (prompt.Decision, string) {
		if strings.TrimSpace(input) == "" {
			return prompt.Retry, retryMsg
		}
		return prompt.Accept, ""
	}
}

// passphraseValidator accepts a reply that verifies against the stored digest.
func passphraseValidator(digest []byte) prompt.Validator {
	return func(input string) (prompt.Decision, string) {
		if !secret.VerifyPassphrase(input, digest) {
			return prompt.Retry, "Invalid passphrase. Try again:"
		}
		return prompt.Accept, ""
	}
}

// rangeValidator accepts an integer reply in [1, max].
func rangeValidator(max int) prompt.Validator {
	return func(input string) (prompt.Decision, string) {
		n, err := strconv.Atoi(strings.TrimSpace(input))
		if err != nil || n < 1 || n > max {
			return prompt.Retry, fmt.Sprintf("Please reply with a number between 1 and %d:", max)
		}
		return prompt.Accept, ""
	}
}
