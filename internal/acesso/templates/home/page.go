// Package home renders the landing page shown after a successful login or signup.
package home

import (
	"context"
	"time"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"finitefield.org/acesso/internal/acesso/templates/helpers"
	"finitefield.org/acesso/internal/acesso/templates/layouts"
)

// Page renders the home document.
func Page(ctx context.Context, data PageData) g.Node {
	who := data.Email
	if who == "" {
		who = data.UID
	}

	return layouts.Page(ctx,
		layouts.PageProps{Title: helpers.T(ctx, "home.page_title"), Flash: data.Flash},
		h.Section(
			h.Class("card"),
			h.H1(h.Class("card-title"), g.Text(helpers.T(ctx, "home.page_title"))),
			h.P(g.Attr("data-signed-in-as", ""), g.Text(helpers.T(ctx, "home.signed_in_as", who))),
			g.If(!data.SignedInAt.IsZero(),
				h.P(h.Class("muted"), g.El("time",
					g.Attr("datetime", data.SignedInAt.UTC().Format(time.RFC3339)),
					g.Text(helpers.Date(data.SignedInAt, "")),
				)),
			),
			h.Form(
				h.Method("post"),
				h.Action(helpers.URL(ctx, "logout")),
				h.Input(h.Type("hidden"), h.Name("csrf_token"), h.Value(data.CSRFToken)),
				h.Button(
					h.Type("submit"),
					h.Class(helpers.ButtonClass(false, false)),
					g.Attr("data-logout", ""),
					g.Text(helpers.T(ctx, "home.logout")),
				),
			),
		),
	)
}
