package auth

// LoginRequest is the form posted to the development sign-in page
type LoginRequest struct {
	Nickname string `form:"nickname" validate:"required,max=64"`
	Email    string `form:"email" validate:"omitempty,email,max=254"`
	Continue string `form:"continue"`
}

// LoginView is the model of the sign-in page
type LoginView struct {
	CurrentUser string
	LoginURL    string
	LogoutURL   string
	Continue    string
	Errors      map[string]string
}
