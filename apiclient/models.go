package apiclient

// Me is the account summary of the current user.
type Me struct {
	UserID          string   `json:"user_id"`
	Email           string   `json:"email,omitempty"`
	Roles           []string `json:"roles"`
	Plan            string   `json:"plan"`
	Entitlements    []string `json:"entitlements"`
	BillingStatus   string   `json:"billing_status,omitempty"`
	RenewsAt        string   `json:"renews_at,omitempty"`
	CancelsAt       string   `json:"cancels_at,omitempty"`
	ProfileComplete bool     `json:"profile_complete"`
}

// CardImage is an image attached to one side of a card.
type CardImage struct {
	ImageID    string `json:"image_id"`
	StorageKey string `json:"storage_key"`
	AltText    string `json:"alt_text,omitempty"`
}

// CardContent is one side of a card.
type CardContent struct {
	Text   string      `json:"text"`
	Images []CardImage `json:"images"`
}

// Card is a flashcard.
type Card struct {
	CardID      string      `json:"card_id"`
	Front       CardContent `json:"front"`
	Answer      CardContent `json:"answer"`
	ShortAnswer []string    `json:"short_answer"`
	Tags        []string    `json:"tags"`
}

// SchedulingInfo is the per-user scheduling state of a card.
type SchedulingInfo struct {
	State      string  `json:"state"`
	Stability  float64 `json:"stability"`
	Difficulty float64 `json:"difficulty"`
	Reps       int     `json:"reps"`
	Lapses     int     `json:"lapses"`
	Due        string  `json:"due"`
	LastReview string  `json:"last_review,omitempty"`
}

// StudyCard pairs a card with its scheduling state.
type StudyCard struct {
	Card           Card           `json:"card"`
	SchedulingInfo SchedulingInfo `json:"scheduling_info"`
}

// Topic is a study topic filter value.
type Topic struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Rating grades a review: 1 again, 2 hard, 3 good, 4 easy.
type Rating int

const (
	RatingAgain Rating = 1
	RatingHard  Rating = 2
	RatingGood  Rating = 3
	RatingEasy  Rating = 4
)

// Valid reports whether r is one of the four grades.
func (r Rating) Valid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

// ReviewRequest is the body of a card review.
type ReviewRequest struct {
	CardID string `json:"card_id"`
	Rating Rating `json:"rating"`
}

// DashboardSummary aggregates study progress.
type DashboardSummary struct {
	DueNow           int            `json:"due_now"`
	ReviewedToday    int            `json:"reviewed_today"`
	StreakDays       int            `json:"streak_days"`
	DueByTopic       map[string]int `json:"due_by_topic"`
	RecommendedTopic string         `json:"recommended_topic,omitempty"`
	AvailableCards   int            `json:"available_cards"`
}
