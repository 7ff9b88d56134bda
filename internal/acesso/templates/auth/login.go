// Package auth renders the login/signup form.
package auth

import (
	"context"

	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	h "maragu.dev/gomponents/html"

	"finitefield.org/acesso/internal/acesso/templates/helpers"
	"finitefield.org/acesso/internal/acesso/templates/layouts"
)

// FormID is the element id swapped by htmx submissions.
const FormID = "auth-form"

// LoginPage renders the full login document.
func LoginPage(ctx context.Context, data LoginPageData) g.Node {
	return layouts.Page(ctx,
		layouts.PageProps{Title: helpers.T(ctx, "form.page_title"), Flash: data.Flash},
		h.Section(
			h.Class("card"),
			h.H1(h.Class("card-title"), g.Text(helpers.T(ctx, "form.heading"))),
			LoginForm(ctx, data.Form),
		),
	)
}

// LoginForm renders the form fragment. Submit controls are disabled while a request is in
// flight, both from the server state and through hx-disabled-elt on the client.
func LoginForm(ctx context.Context, form FormView) g.Node {
	loginAction := helpers.URL(ctx, "login")

	return h.Form(
		h.ID(FormID),
		h.Class("auth-form"),
		h.Method("post"),
		h.Action(loginAction),
		hx.Post(loginAction),
		hx.Target("this"),
		hx.Swap("outerHTML"),
		g.Attr("hx-disabled-elt", "find button"),
		g.If(form.Loading, g.Attr("aria-busy", "true")),
		h.Input(h.Type("hidden"), h.Name("csrf_token"), h.Value(form.CSRFToken)),
		g.If(form.Next != "", h.Input(h.Type("hidden"), h.Name("next"), h.Value(form.Next))),
		h.Div(
			h.Class("field"),
			h.Label(h.For("email"), g.Text(helpers.T(ctx, "form.email"))),
			h.Input(
				h.ID("email"),
				h.Type("email"),
				h.Name("email"),
				h.Value(form.Email),
				h.AutoComplete("email"),
				h.Required(),
			),
		),
		h.Div(
			h.Class("field"),
			h.Label(h.For("password"), g.Text(helpers.T(ctx, "form.password"))),
			h.Input(
				h.ID("password"),
				h.Type("password"),
				h.Name("password"),
				h.AutoComplete("current-password"),
				h.Required(),
			),
		),
		errorArea(form.ErrorMessage),
		h.Div(
			h.Class("actions"),
			submitButton(ctx, form.Loading),
			signupButton(ctx, form),
		),
	)
}

func submitButton(ctx context.Context, loading bool) g.Node {
	label := helpers.T(ctx, "form.submit")
	if loading {
		label = helpers.T(ctx, "form.submitting")
	}
	return h.Button(
		h.Type("submit"),
		h.Class(helpers.ButtonClass(true, loading)),
		g.Attr("data-submit", ""),
		g.If(loading, h.Disabled()),
		h.Span(h.Class("label-idle"), g.Text(label)),
		h.Span(h.Class("label-busy"), g.Text(helpers.T(ctx, "form.submitting"))),
	)
}

func signupButton(ctx context.Context, form FormView) g.Node {
	signupAction := helpers.URL(ctx, "signup")

	return h.Button(
		h.Type("submit"),
		h.Class(helpers.ButtonClass(false, form.Loading)),
		g.Attr("data-signup", ""),
		g.Attr("formaction", signupAction),
		hx.Post(signupAction),
		g.If(form.Loading, h.Disabled()),
		g.Text(helpers.T(ctx, "form.signup")),
	)
}

func errorArea(message *string) g.Node {
	if message == nil {
		return nil
	}
	return h.P(
		h.Class(helpers.AlertClass("danger")),
		h.Role("alert"),
		g.Attr("data-form-error", ""),
		g.Text(*message),
	)
}
