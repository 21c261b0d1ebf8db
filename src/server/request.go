package server

// JSON request bodies for the /api surface.
type (
	SignupBody struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	LoginBody struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	AnalyzeBody struct {
		ImageURL string `json:"imageUrl"`
	}

	DescriptionBody struct {
		UserDescription string `json:"userDescription"`
	}
)
