// Package seed embeds the default knowledge base loaded by the seed command.
package seed

import _ "embed"

//go:embed gastric.yaml
var gastric []byte

// Default returns the bundled gastric-disease knowledge base.
func Default() []byte {
	return gastric
}
