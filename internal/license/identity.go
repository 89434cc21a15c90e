package license

import "strings"

const (
	itemNamePrefix = "Easy Digital Downloads - "
	itemNameMarker = "edd-"
)

// ShortName derives the product identity from a human readable item name:
// the EDD prefix becomes "edd-", the result is lower-cased and spaces turn
// into hyphens. The identity namespaces settings and identifies the item on
// the wire.
func ShortName(itemName string) string {
	name := strings.ToLower(strings.ReplaceAll(itemName, itemNamePrefix, itemNameMarker))
	return strings.ReplaceAll(name, " ", "-")
}

// Namespace returns the settings namespace holding the license record.
func Namespace(shortName string) string {
	return shortName + "-license"
}

// KeyField returns the form field carrying the submitted license key.
func KeyField(shortName string) string {
	return shortName + "-license-key"
}

// NonceField returns the form field, and nonce action, guarding license
// changes of the product.
func NonceField(shortName string) string {
	return shortName + "-license-nonce"
}

// DeactivateField returns the form field that requests deactivation of the
// product on a plain settings save.
func DeactivateField(shortName string) string {
	return shortName + "_" + deactivateIntent
}

// deactivateIntent marks any form field asking for a deactivation.
const deactivateIntent = "license_key_deactivate"

// Settings record fields.
const (
	fieldKey     = "key"
	fieldDetails = "details"
)
