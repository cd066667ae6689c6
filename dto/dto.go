package dto

import "time"

type ShortenRequestDto struct {
	Url          string `json:"url"`
	CustomAlias  string `json:"customAlias,omitempty"`
	ExpireInDays int    `json:"expireInDays,omitempty"`
}

type ShortenResponseDto struct {
	ShortCode string `json:"shortCode"`
	Url       string `json:"url"`
}

// MetadataResponseDto reports ExpiresAt as null both for links that never
// expire and when the answer came from the metadata cache, which does not
// hold it.
type MetadataResponseDto struct {
	Url       string     `json:"url"`
	ShortCode string     `json:"shortCode"`
	Clicks    int64      `json:"clicks"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type ErrorResponseDto struct {
	Error string `json:"error"`
}
