package auth

// LoginPayload represents the login request body.
type LoginPayload struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required"`
}

// MeResponse represents the current user response.
type MeResponse struct {
	Username string `json:"username"`
}
