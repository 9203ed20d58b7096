package observability

import (
	"strings"
	"unicode"
)

const defaultStringLimit = 256

// sanitizeString drops control characters and caps the length.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}
	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		cleaned = append(cleaned, r)
		if len(cleaned) == limit {
			break
		}
	}
	return string(cleaned)
}

func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// MaskPhone keeps the last three digits of a phone number.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 3 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return MaskPhone(email)
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}

func maskContact(value string) string {
	if strings.Contains(value, "@") {
		return MaskEmail(value)
	}
	return MaskPhone(value)
}

var maskedKeys = map[string]func(string) string{
	"phone":     MaskPhone,
	"userphone": MaskPhone,
	"recipient": maskContact,
	"email":     MaskEmail,
	"useremail": MaskEmail,
}

func maskField(key string, value any) any {
	text, ok := value.(string)
	if !ok {
		return value
	}
	if mask, ok := maskedKeys[strings.ToLower(key)]; ok {
		return mask(text)
	}
	return text
}
