package core

// Part is one segment of role-based content sent to a model.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// DataPart carries tabular data next to the prompt text.
type DataPart struct {
	Table Table
}

func (DataPart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// NewTextContent builds a single-part content value.
func NewTextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates the text of all parts. DataPart tables are rendered with
// Table.String.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		switch v := p.(type) {
		case TextPart:
			out += v.Text
		case DataPart:
			if out != "" {
				out += "\n"
			}
			out += v.Table.String()
		}
	}
	return out
}
