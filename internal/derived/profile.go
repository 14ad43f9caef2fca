// Package derived holds small pure computations over domain records.
package derived

import (
	"strings"

	"github.com/autoci/marketplace/internal/models"
)

const (
	placeholderName  = "Utilisateur"
	placeholderPhone = "00 00 00 00"
)

// MissingProfileFields lists the profile fields still holding no value or a
// sign-up placeholder.
func MissingProfileFields(p models.Profile) []string {
	var missing []string
	name := strings.TrimSpace(p.FullName)
	if name == "" || name == placeholderName {
		missing = append(missing, "full_name")
	}
	phone := strings.TrimSpace(p.Phone)
	if phone == "" || strings.Contains(phone, placeholderPhone) {
		missing = append(missing, "phone")
	}
	return missing
}

// IsProfileComplete reports whether the profile has a real name and phone
func IsProfileComplete(p models.Profile) bool {
	return len(MissingProfileFields(p)) == 0
}
