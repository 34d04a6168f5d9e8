package models

// Review is a single user review as returned by the Place Details API.
type Review struct {
	AuthorName              string `json:"author_name"`
	AuthorURL               string `json:"author_url,omitempty"`
	Language                string `json:"language,omitempty"`
	OriginalLanguage        string `json:"original_language,omitempty"`
	ProfilePhotoURL         string `json:"profile_photo_url,omitempty"`
	Rating                  int    `json:"rating"`
	RelativeTimeDescription string `json:"relative_time_description,omitempty"`
	Text                    string `json:"text"`
	Time                    int64  `json:"time"` // Unix seconds
	Translated              bool   `json:"translated,omitempty"`
}

// PlaceDetailsResponse is the envelope of a Place Details API call.
type PlaceDetailsResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Result       *PlaceDetails `json:"result"`
}

// PlaceDetails is the subset of place fields requested from the API.
// Rating and UserRatingsTotal are pointers so that an absent field can be
// told apart from a zero value.
type PlaceDetails struct {
	Name             string   `json:"name"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
	Reviews          []Review `json:"reviews"`
}
