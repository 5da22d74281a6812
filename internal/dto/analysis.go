package dto

type AnalyzeRequest struct {
	ImagePath string `json:"imagePath" example:"receipt1.JPG"`
	Prompt    string `json:"prompt,omitempty" example:"Describe the civic issue in this photo."`
}

type AnalyzeResponse struct {
	Success   bool   `json:"success" example:"true"`
	Analysis  string `json:"analysis" example:"Items: coffee $3.50 ... Total: $12.75"`
	ImagePath string `json:"imagePath" example:"receipt1.JPG"`
	Cached    bool   `json:"cached,omitempty" example:"false"`
}

type UploadResponse struct {
	Filename string `json:"filename" example:"pothole.jpg"`
}

type ModelStatusResponse struct {
	Status  string `json:"status" example:"ok"`
	Message string `json:"message" example:"Gemini AI model is working correctly"`
	Model   string `json:"model,omitempty" example:"gemini-1.5-flash"`
	Details string `json:"details,omitempty"`
}
