package cogs

import (
	"strings"

	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/config"
)

// CodingHelp answers syntax and concept lookups from the snippet library.
type CodingHelp struct {
	snippets *config.SnippetLibrary
}

func NewCodingHelp(snippets *config.SnippetLibrary) *CodingHelp {
	return &CodingHelp{snippets: snippets}
}

func (c *CodingHelp) Name() string { return "codinghelp" }

func (c *CodingHelp) Register(r *bot.Router) error {
	cmds := []*bot.Command{
		{
			Name:        "syntax",
			Usage:       "syntax <language> <topic>",
			Description: "Show a syntax example, like `syntax python loops`.",
			Handler:     c.syntax,
		},
		{
			Name:        "concept",
			Usage:       "concept <name>",
			Description: "Explain a programming concept, like `concept recursion`.",
			Handler:     c.concept,
		},
	}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *CodingHelp) syntax(ctx *bot.Context) error {
	if len(ctx.Args) != 2 {
		return ctx.Reply("Usage: %ssyntax <language> <topic>", ctx.Prefix)
	}
	language, topic := ctx.Args[0], ctx.Args[1]

	snippet, suggestions, ok := c.snippets.Syntax(language, topic)
	if !ok {
		if len(suggestions) == 0 {
			return ctx.Reply("I don't have anything for %s.", language)
		}
		return ctx.Reply("No %q for %s. Try one of: %s", topic, language, strings.Join(suggestions, ", "))
	}
	return ctx.Reply("```%s\n%s\n```", strings.ToLower(language), snippet)
}

func (c *CodingHelp) concept(ctx *bot.Context) error {
	if len(ctx.Args) == 0 {
		return ctx.Reply("Usage: %sconcept <name>", ctx.Prefix)
	}
	name := strings.Join(ctx.Args, " ")

	text, suggestions, ok := c.snippets.Concept(name)
	if !ok {
		if len(suggestions) == 0 {
			return ctx.Reply("I don't know %q.", name)
		}
		return ctx.Reply("I don't know %q. Try one of: %s", name, strings.Join(suggestions, ", "))
	}
	return ctx.Reply("**%s**\n%s", name, text)
}
