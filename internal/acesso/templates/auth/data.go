package auth

// FormView is the render state of the login/signup form. It mirrors the controller cells;
// the password is never echoed back.
type FormView struct {
	Email        string
	ErrorMessage *string
	Loading      bool

	CSRFToken string
	Next      string
}

// LoginPageData encapsulates rendering state for the login screen.
type LoginPageData struct {
	Form  FormView
	Flash string
}
