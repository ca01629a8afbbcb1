// Package extract recovers structured agent fields from scraped profile text.
//
// Every function is pure and total: a miss returns a documented fallback or
// an empty string, never an error.
package extract

import (
	"github.com/zdub15/agent-website-generator/internal/profile"
	"github.com/zdub15/agent-website-generator/internal/ranker"
)

// Result is the extracted profile plus the ranking it was built from.
// Profile.HeadshotURL carries the ranker's validated choice, if any.
type Result struct {
	Profile profile.AgentProfile
	Ranking ranker.Result
}

// Extract parses doc fetched from sourceURL into an AgentProfile.
func Extract(doc, sourceURL string) Result {
	name := NameFromURL(sourceURL)
	if name == "" {
		name = NameFromText(doc)
	}
	if name == "" {
		name = profile.PlaceholderName
	}

	company := Company(doc)
	ranking := ranker.Rank(doc, company != "")

	p := profile.AgentProfile{
		Name:           name,
		Phone:          Phone(doc),
		Email:          Email(doc),
		Address:        Address(doc),
		Bio:            Bio(doc),
		Products:       Products(doc),
		CompanyName:    company,
		CompanyLogoURL: ranking.LogoURL,
		SourceURL:      sourceURL,
		HeadshotURL:    ranking.HeadshotURL,
	}
	return Result{Profile: p, Ranking: ranking}
}
