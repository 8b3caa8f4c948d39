// Package prompt builds the instruction sent to the model.
package prompt

import "fmt"

const (
	// HumanMarker opens the user turn of the dialogue.
	HumanMarker = "\n\nHuman:"

	// ReplyMarker marks where the model's reply begins. Every prompt ends with it.
	ReplyMarker = "\n\nAssistant:"
)

// Build embeds message and language verbatim into the dialogue template.
// Neither value is escaped.
func Build(message, language string) string {
	return fmt.Sprintf("%s Write %s code for the following instructions: %s.%s",
		HumanMarker, language, message, ReplyMarker)
}
