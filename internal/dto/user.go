package dto

type SignupRequest struct {
	Email       string `json:"email" example:"test@example.com"`
	Password    string `json:"password" example:"password123"`
	DisplayName string `json:"displayName,omitempty" example:"Test User"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"test@example.com"`
	Password string `json:"password" example:"password123"`
}

type UserResponse struct {
	UID           string `json:"uid" example:"user_4f1c2b"`
	Email         string `json:"email" example:"test@example.com"`
	DisplayName   string `json:"displayName,omitempty" example:"Test User"`
	EmailVerified bool   `json:"emailVerified" example:"false"`
}

type AuthResponse struct {
	Message     string       `json:"message" example:"User created successfully"`
	User        UserResponse `json:"user"`
	CustomToken string       `json:"customToken" example:"eyJhbGciOiJIUzI1NiIs..."`
}

type ProfileUser struct {
	UID         string `json:"uid" example:"user_4f1c2b"`
	Email       string `json:"email" example:"test@example.com"`
	DisplayName string `json:"displayName,omitempty" example:"Test User"`
}

type ProfileResponse struct {
	Message string      `json:"message" example:"Profile retrieved successfully"`
	User    ProfileUser `json:"user"`
}
