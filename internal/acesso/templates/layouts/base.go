// Package layouts provides the document shell shared by every full page.
package layouts

import (
	"context"
	"strings"

	g "maragu.dev/gomponents"
	c "maragu.dev/gomponents/components"
	h "maragu.dev/gomponents/html"

	"finitefield.org/acesso/internal/acesso/templates/helpers"
)

const (
	stylesheetPath = "/public/static/app.css"
	htmxScriptURL  = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"
)

// PageProps configures the document shell.
type PageProps struct {
	Title string
	Flash string
}

// Page wraps body in the HTML document with the stylesheet, htmx and the optional flash banner.
func Page(ctx context.Context, props PageProps, body ...g.Node) g.Node {
	title := "Acesso"
	if t := strings.TrimSpace(props.Title); t != "" {
		title = t + " | Acesso"
	}

	return c.HTML5(c.HTML5Props{
		Title:    title,
		Language: helpers.Lang(ctx),
		Head: []g.Node{
			h.Meta(h.Name("viewport"), h.Content("width=device-width, initial-scale=1")),
			h.Link(h.Rel("stylesheet"), h.Href(stylesheetPath)),
			h.Script(h.Src(htmxScriptURL), h.Defer()),
		},
		Body: []g.Node{
			h.Class("page"),
			environmentBadge(helpers.Environment(ctx)),
			h.Main(
				h.Class("container"),
				Flash(props.Flash),
				g.Group(body),
			),
		},
	})
}

// Flash renders the one-shot status banner; an empty message renders nothing.
func Flash(message string) g.Node {
	if message == "" {
		return nil
	}
	return h.Div(
		h.Class(helpers.AlertClass("success")),
		h.Role("status"),
		g.Attr("data-flash", ""),
		g.Text(message),
	)
}

func environmentBadge(env string) g.Node {
	if env == "" {
		return nil
	}
	return h.Span(
		h.Class("env-badge"),
		g.Attr("data-environment-badge", env),
		g.Text(strings.ToUpper(env)),
	)
}
