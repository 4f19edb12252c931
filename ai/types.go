package ai

import "time"

type UserSummary struct {
	Username string `json:"username"`
	Total    int    `json:"total"`
	Open     int    `json:"open"`
	Closed   int    `json:"closed"`
	Merged   int    `json:"merged"`
	Reviewed int    `json:"reviewed"`
}

type DigestJob struct {
	Repos []string      `json:"repos"`
	Since time.Time     `json:"since"`
	Until time.Time     `json:"until"`
	Users []UserSummary `json:"users"`
}

type UserLine struct {
	Username string `json:"username"`
	Summary  string `json:"summary"`
}

type DigestWindow struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

type DigestPayload struct {
	Title      string       `json:"title"`
	Window     DigestWindow `json:"window"`
	Highlights []string     `json:"highlights,omitempty"`
	PerUser    []UserLine   `json:"perUser,omitempty"`
	Narrative  string       `json:"narrative"`
}
