package dto

type CategoryResponse struct {
	Key      string `json:"key" example:"pothole"`
	Label    string `json:"label" example:"Pothole"`
	Question string `json:"question" example:"Is there a pothole in this photo? Describe its size and location."`
}

type CategoryListResponse struct {
	Categories []CategoryResponse `json:"categories"`
}
