// Package identity converts backend locators into opaque, URL-safe media
// identities and back.
//
// A locator is whatever string a backend uses to find an item again: a device
// path such as "/DCIM/100APPLE/IMG_0001.HEIC", or an absolute file path on a
// mounted volume. Identities are the padded URL-safe base64 form of the
// locator bytes, so the mapping is reversible and collision-free.
//
// Synthetic identities live in a separate namespace ("demo:<n>"). The colon is
// outside the base64url alphabet, so a synthetic identity never decodes as a
// locator and no locator ever encodes to a synthetic identity.
package identity

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/camroll/internal/domain"
)

const syntheticPrefix = "demo:"

// Encode returns the identity for a locator
func Encode(locator string) string {
	return base64.URLEncoding.EncodeToString([]byte(locator))
}

// Decode returns the locator behind an identity
func Decode(identity string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("%w: empty", domain.ErrInvalidIdentity)
	}
	if IsSynthetic(identity) {
		return "", fmt.Errorf("%w: %q is synthetic", domain.ErrInvalidIdentity, identity)
	}
	raw, err := base64.URLEncoding.Strict().DecodeString(identity)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidIdentity, err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty locator", domain.ErrInvalidIdentity)
	}
	return string(raw), nil
}

// Synthetic returns the identity of the n-th synthetic item (1-based)
func Synthetic(n int) string {
	return syntheticPrefix + strconv.Itoa(n)
}

// IsSynthetic reports whether identity is in the synthetic namespace
func IsSynthetic(identity string) bool {
	return strings.HasPrefix(identity, syntheticPrefix)
}

// SyntheticIndex returns n for "demo:<n>"
func SyntheticIndex(identity string) (int, bool) {
	if !IsSynthetic(identity) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(identity, syntheticPrefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Validate checks that identity is either synthetic or a decodable locator
func Validate(identity string) error {
	if _, ok := SyntheticIndex(identity); ok {
		return nil
	}
	_, err := Decode(identity)
	return err
}
