package main

import (
	"fmt"
	"io"
	"strings"

	agent "github.com/Protocol-Lattice/toolloop"
)

const (
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// console prints run events as they stream. Reasoning is dimmed when color is
// enabled; tool results follow the call text the model already streamed.
type console struct {
	out   io.Writer
	color bool

	inReasoning bool
	lineOpen    bool
}

func newConsole(out io.Writer, color bool) *console {
	return &console{out: out, color: color}
}

func (c *console) event(ev agent.Event) {
	switch ev.Kind {
	case agent.EventReasoning:
		if !c.inReasoning && c.color {
			fmt.Fprint(c.out, ansiDim)
		}
		c.inReasoning = true
		c.write(ev.Text)
	case agent.EventContent:
		c.endReasoning()
		c.write(ev.Text)
	case agent.EventTool:
		c.endReasoning()
		if ev.Tool == nil {
			return
		}
		fmt.Fprintf(c.out, " =>\n%s\n", ev.Tool.Text())
		c.lineOpen = false
	case agent.EventWarning:
		c.endReasoning()
		c.newline()
		fmt.Fprintf(c.out, "warning: %s\n", ev.Text)
	}
}

// finish closes the current line at the end of a run.
func (c *console) finish() {
	c.endReasoning()
	c.newline()
}

func (c *console) write(text string) {
	if text == "" {
		return
	}
	fmt.Fprint(c.out, text)
	c.lineOpen = !strings.HasSuffix(text, "\n")
}

func (c *console) endReasoning() {
	if !c.inReasoning {
		return
	}
	c.inReasoning = false
	if c.color {
		fmt.Fprint(c.out, ansiReset)
	}
	c.newline()
}

func (c *console) newline() {
	if c.lineOpen {
		fmt.Fprintln(c.out)
		c.lineOpen = false
	}
}
