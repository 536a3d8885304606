package frontmatter

import (
	"strings"

	"github.com/inful/mdfp"
)

// FingerprintField is the frontmatter key holding a stored fingerprint.
const FingerprintField = mdfp.FingerprintField

// Keys that change without the content changing.
var volatileKeys = map[string]bool{
	mdfp.FingerprintField: true,
	"lastmod":             true,
	"uid":                 true,
	"aliases":             true,
}

// Fingerprint returns the content fingerprint of a document. Volatile keys
// are excluded so that touching them does not change the result.
func Fingerprint(fields map[string]any, body []byte) (string, error) {
	stable := make(map[string]any, len(fields))
	for k, v := range fields {
		if !volatileKeys[k] {
			stable[k] = v
		}
	}

	fm := ""
	if len(stable) > 0 {
		serialized, err := SerializeYAML(stable)
		if err != nil {
			return "", err
		}
		fm = strings.TrimSuffix(string(serialized), "\n")
	}
	return mdfp.CalculateFingerprintFromParts(fm, string(body)), nil
}
