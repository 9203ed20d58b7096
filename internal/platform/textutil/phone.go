package textutil

import "strings"

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "\u00a0", "")

// NormalizePhone strips separators and rewrites a leading 00 international
// prefix to +. It does not validate the number.
func NormalizePhone(raw string) string {
	phone := phoneSeparators.Replace(strings.TrimSpace(raw))
	if strings.HasPrefix(phone, "00") {
		phone = "+" + phone[2:]
	}
	return phone
}

// CollapseSpaces trims the value and folds inner whitespace runs to one space.
func CollapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
