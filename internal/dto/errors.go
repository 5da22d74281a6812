package dto

type ErrorResponse struct {
	Error   string `json:"error" example:"Email and password are required"`
	Code    string `json:"code,omitempty" example:"missing_credentials"`
	Details any    `json:"details,omitempty" swaggertype:"object"`
}
