package transport

import "time"

type UploadResponse struct {
	URL       string    `json:"url"`
	Pathname  string    `json:"pathname"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type URLRequest struct {
	Pathname string `form:"pathname" validate:"required,max=512"`
}
