package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns prefix_ followed by the first 12 hex chars of a random
// uuid, e.g. "cam_3f2a9c1b7d40".
func GenerateID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + raw[:12]
}

func GenerateCameraID() string {
	return GenerateID("cam")
}

func GenerateEmployeeID() string {
	return GenerateID("emp")
}

// GenerateRequestID returns a full uuid for request correlation.
func GenerateRequestID() string {
	return uuid.NewString()
}
