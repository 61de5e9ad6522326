package relations

import "context"

// CompositeCommand runs an ordered list of commands as one unit. Every phase
// visits the nested commands in list order, the end phases included.
type CompositeCommand struct {
	commands []Command
}

var _ Command = (*CompositeCommand)(nil)

// NewCompositeCommand groups commands in the given order.
func NewCompositeCommand(commands ...Command) *CompositeCommand {
	out := make([]Command, len(commands))
	copy(out, commands)
	return &CompositeCommand{commands: out}
}

// Commands returns the direct children.
func (c *CompositeCommand) Commands() []Command {
	out := make([]Command, len(c.commands))
	copy(out, c.commands)
	return out
}

// Flatten returns the leaf commands in declaration order.
func (c *CompositeCommand) Flatten() []Command {
	var out []Command
	for _, cmd := range c.commands {
		if nested, ok := cmd.(*CompositeCommand); ok {
			out = append(out, nested.Flatten()...)
			continue
		}
		out = append(out, cmd)
	}
	return out
}

func (c *CompositeCommand) NotifyClientTransactionOfBegin() error {
	for _, cmd := range c.commands {
		if err := cmd.NotifyClientTransactionOfBegin(); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompositeCommand) Begin() error {
	for _, cmd := range c.commands {
		if err := cmd.Begin(); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompositeCommand) Perform() {
	for _, cmd := range c.commands {
		cmd.Perform()
	}
}

func (c *CompositeCommand) NotifyClientTransactionOfEnd() {
	for _, cmd := range c.commands {
		cmd.NotifyClientTransactionOfEnd()
	}
}

func (c *CompositeCommand) End() {
	for _, cmd := range c.commands {
		cmd.End()
	}
}

// ExpandToAllRelatedObjects returns c unchanged; its children are already expanded.
func (c *CompositeCommand) ExpandToAllRelatedObjects(context.Context) (*CompositeCommand, error) {
	return c, nil
}
