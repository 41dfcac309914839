package domain

// Course is read-only reference data loaded from the course catalog.
type Course struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	FullDescription    string   `json:"fullDescription"`
	Price              float64  `json:"price"`
	ImageURL           string   `json:"imageUrl"`
	Instructor         string   `json:"instructor"`
	Rating             float64  `json:"rating"`
	Students           int      `json:"students"`
	Category           string   `json:"category"`
	LastUpdatedDate    string   `json:"lastUpdatedDate"`
	Language           string   `json:"language"`
	Subtitles          []string `json:"subtitles"`
	NumRatings         int      `json:"numRatings"`
	Provider           string   `json:"provider"`
	IsPremium          bool     `json:"isPremium"`
	OriginalPrice      float64  `json:"originalPrice"`
	DiscountPercentage float64  `json:"discountPercentage"`
	KeyLearningPoints  []string `json:"keyLearningPoints"`
	Requirements       []string `json:"requirements"`
	WhoIsFor           []string `json:"whoIsFor"`
}
