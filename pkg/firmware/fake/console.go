package fake

import "strings"

// Console records console output line by line
type Console struct {
	Lines   []string
	Cleared int

	platform *Platform
	partial  strings.Builder
}

// NewConsole returns a console whose calls are accounted on p
func NewConsole(p *Platform) *Console {
	return &Console{platform: p}
}

func (c *Console) ClearScreen() error {
	if err := c.platform.call(OpClearScreen); err != nil {
		return err
	}
	c.Cleared++
	c.Lines = nil
	c.partial.Reset()
	return nil
}

func (c *Console) OutputString(s string) error {
	if err := c.platform.call(OpOutputString); err != nil {
		return err
	}
	c.partial.WriteString(s)
	text := c.partial.String()
	for {
		idx := strings.Index(text, "\n\r")
		if idx < 0 {
			break
		}
		c.Lines = append(c.Lines, text[:idx])
		text = text[idx+2:]
	}
	c.partial.Reset()
	c.partial.WriteString(text)
	return nil
}

// Output returns everything written since the last clear
func (c *Console) Output() string {
	out := strings.Join(c.Lines, "\n")
	if c.partial.Len() > 0 {
		if out != "" {
			out += "\n"
		}
		out += c.partial.String()
	}
	return out
}
