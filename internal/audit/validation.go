package audit

import "fmt"

const (
	maxEmailLength = 254
	ipHashLength   = 16
)

var validKinds = map[string]bool{
	"login_succeeded": true,
	"login_failed":    true,
	"user_registered": true,
	"logout":          true,
}

// ValidateEventPayload validates auth event payload fields.
func ValidateEventPayload(payload EventPayload) error {
	if payload.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if !validKinds[payload.Kind] {
		return fmt.Errorf("unknown event kind %q", payload.Kind)
	}
	if payload.Email == "" {
		return fmt.Errorf("email is required")
	}
	if len(payload.Email) > maxEmailLength {
		return fmt.Errorf("email too long")
	}
	if payload.IPHash != "" && (len(payload.IPHash) != ipHashLength || !isHex(payload.IPHash)) {
		return fmt.Errorf("ip_hash must be %d hex chars", ipHashLength)
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
