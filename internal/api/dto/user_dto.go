package dto

// SignInRequest payload for POST /auth/{role}/signin. PhoneNumber is only sent by customers.
type SignInRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// VendorSignUpRequest payload for POST /auth/vendor/signup.
type VendorSignUpRequest struct {
	BusinessName     string `json:"businessName"`
	ContactPerson    string `json:"contactPerson"`
	Email            string `json:"email"`
	PhoneNumber      string `json:"phoneNumber"`
	Password         string `json:"password"`
	ConfirmPassword  string `json:"confirmPassword"`
	BusinessCategory string `json:"businessCategory"`
	BusinessAddress  string `json:"businessAddress"`
}

// CustomerSignUpRequest payload for POST /auth/customer/signup.
type CustomerSignUpRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// RefreshTokenRequest payload for POST /auth/{role}/refresh-token.
type RefreshTokenRequest struct {
	Token string `json:"token"`
}

// TokenResponse is returned by every auth endpoint. Expiry is epoch millis and
// may be absent.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	Expiry      int64  `json:"expiry"`
}

// ErrorResponse is the discovery service's error body.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// SessionResponse describes the agent's session to the UI shell.
type SessionResponse struct {
	State     string `json:"state"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}
