package engine

import (
	"fmt"
	"strings"

	"replique/internal/attachment"
	"replique/internal/domain"
	"replique/internal/persona"
)

const (
	transcriptSeparator = "Above are the previous messages for context"
	replySpeaker        = "You"

	// Recorded in place of an empty user message so transcript lines are
	// never blank.
	emptyContentNote = "No text response provided, likely an image or blank message to test you"
)

// Compiler builds the outbound prompt from the persona preamble, the cached
// transcript, the current message, and an optional text attachment.
type Compiler struct {
	persona persona.Persona
}

func NewCompiler(p persona.Persona) *Compiler {
	return &Compiler{persona: p}
}

// Compile produces the prompt string. With cached turns the transcript and
// separator come first; without them the prompt starts at the preamble.
// Binary attachments are never inlined here.
func (c *Compiler) Compile(turns []domain.Turn, msg domain.IncomingMessage, att *attachment.Payload) string {
	var sb strings.Builder

	if len(turns) > 0 {
		for i, t := range turns {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(transcriptLine(t.Speaker, t.Content))
		}
		sb.WriteString("\n\n")
		sb.WriteString(transcriptSeparator)
		sb.WriteString("\n\n")
	}

	sb.WriteString(c.persona.Preamble())
	sb.WriteString("\n\n")
	sb.WriteString(transcriptLine(msg.AuthorName, msg.Content))

	if att != nil && !att.Binary {
		fmt.Fprintf(&sb, "\n\nThe user also provided a file of type %s with the following content:\n%s",
			att.TypeTag, att.Text)
	}

	return sb.String()
}

func transcriptLine(speaker, content string) string {
	return fmt.Sprintf("%s said this: %s", speaker, content)
}

// userTurn records the incoming message as a context turn.
func userTurn(msg domain.IncomingMessage) domain.Turn {
	content := msg.Content
	if content == "" {
		content = emptyContentNote
	}
	return domain.Turn{Speaker: msg.AuthorName, Content: content}
}

// replyTurn records the delivered reply as a context turn.
func replyTurn(text string) domain.Turn {
	return domain.Turn{Speaker: replySpeaker, Content: text}
}
