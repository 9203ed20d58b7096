package storage

import (
	"fmt"
	"path"
	"strings"
)

// posterObjects names the staging and public objects of one poster upload.
type posterObjects struct {
	Upload string
	Public string
}

// objectsFor keeps the upload id in the public key so a replaced poster gets a fresh URL.
func objectsFor(eventID, uploadID, fileName string) (posterObjects, error) {
	parts := map[string]string{"event id": eventID, "upload id": uploadID, "file name": fileName}
	for label, value := range parts {
		if err := checkSegment(label, value); err != nil {
			return posterObjects{}, err
		}
	}
	eventID, uploadID, fileName = strings.TrimSpace(eventID), strings.TrimSpace(uploadID), strings.TrimSpace(fileName)
	return posterObjects{
		Upload: path.Join("uploads", "events", eventID, uploadID, fileName),
		Public: fmt.Sprintf("events/%s/poster-%s%s", eventID, uploadID, strings.ToLower(path.Ext(fileName))),
	}, nil
}

func checkSegment(label, value string) error {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return fmt.Errorf("storage: %s is required", label)
	case value == "." || strings.Contains(value, ".."):
		return fmt.Errorf("storage: %s must not traverse directories", label)
	case strings.ContainsAny(value, "/\\"):
		return fmt.Errorf("storage: %s must not contain path separators", label)
	}
	return nil
}
