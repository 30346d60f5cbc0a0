package components

import (
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/predinator/internal/ui/theme"
)

// Choice is a vertical option selector. Options may bind a shortcut key.
type Choice struct {
	Prompt    string
	Options   []string
	Keys      []string
	Selected  int
	Submitted bool
}

// NewChoice creates a choice for prompt. keys, if given, are shortcut keys
// parallel to options.
func NewChoice(prompt string, options []string, keys ...string) Choice {
	return Choice{Prompt: prompt, Options: options, Keys: keys}
}

// Update handles keyboard navigation and selection.
func (c Choice) Update(msg tea.Msg) (Choice, tea.Cmd) {
	if c.Submitted {
		return c, nil
	}
	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return c, nil
	}

	key := kmsg.String()
	switch key {
	case "up", "k":
		if c.Selected > 0 {
			c.Selected--
		}
		return c, nil
	case "down", "j":
		if c.Selected < len(c.Options)-1 {
			c.Selected++
		}
		return c, nil
	case "enter":
		c.Submitted = true
		return c, nil
	}
	for i, k := range c.Keys {
		if i < len(c.Options) && strings.EqualFold(k, key) {
			c.Selected = i
			c.Submitted = true
			break
		}
	}
	return c, nil
}

// Value returns the selected option.
func (c Choice) Value() string {
	if c.Selected < 0 || c.Selected >= len(c.Options) {
		return ""
	}
	return c.Options[c.Selected]
}

// View renders the prompt and options.
func (c Choice) View() string {
	var b strings.Builder
	b.WriteString(theme.Question.Render(c.Prompt))
	b.WriteString("\n\n")
	for i, opt := range c.Options {
		label := opt
		if i < len(c.Keys) {
			label = "[" + c.Keys[i] + "] " + opt
		}
		if i == c.Selected {
			b.WriteString(theme.Selected.Render("▸ " + label))
		} else {
			b.WriteString(theme.Unselected.Render("  " + label))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
