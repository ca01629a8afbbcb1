// Package content produces the marketing copy shown on a generated site,
// either from a chat-completions model or from the fixed default bundle.
package content

import (
	"github.com/zdub15/agent-website-generator/internal/profile"
	"github.com/zdub15/agent-website-generator/internal/site"
)

// DefaultStats are the headline numbers used until an agent supplies their own.
var DefaultStats = site.Stats{
	FamiliesHelped:   "150+",
	SatisfactionRate: "98%",
	CoverageIssued:   "$1M+",
}

// Default returns the copy used when generation is disabled or fails.
func Default(p profile.AgentProfile) site.GeneratedContent {
	name := p.Name
	if name == "" {
		name = profile.PlaceholderName
	}
	bio := p.Bio
	if bio == "" {
		bio = profile.FallbackBio
	}
	return site.GeneratedContent{
		Headline:     "Personalized Health Coverage Made Simple",
		Subheadline:  "Work with " + name + " to find the perfect health insurance plan for you and your family.",
		EnhancedBio:  bio,
		Services:     defaultServices(),
		Testimonials: defaultTestimonials(),
		ProcessSteps: defaultSteps(),
		Stats:        DefaultStats,
	}
}

func defaultServices() []site.Offering {
	return []site.Offering{
		{
			ID:    "private-ppo",
			Title: "Private PPO Plans",
			Description: "Premium health coverage with nationwide provider networks and comprehensive benefits " +
				"for individuals and families seeking quality care.",
			Benefits: []string{"Choose any doctor or hospital", "No referrals needed", "Nationwide coverage"},
		},
		{
			ID:    "aca",
			Title: "ACA/Marketplace Plans",
			Description: "Affordable Care Act compliant plans with essential health benefits and potential " +
				"premium subsidies based on your income.",
			Benefits: []string{"Essential health benefits", "Preventive care covered", "Subsidy eligible"},
		},
		{
			ID:          "group",
			Title:       "Group Insurance",
			Description: "Comprehensive coverage solutions for businesses of all sizes, from startups to established companies.",
			Benefits:    []string{"Tax advantages", "Employee retention", "Customizable plans"},
		},
		{
			ID:    "supplemental",
			Title: "Supplemental Benefits",
			Description: "Additional coverage including accident, critical illness, and hospital indemnity plans " +
				"to fill gaps in your primary coverage.",
			Benefits: []string{"Cash benefits", "No network restrictions", "Affordable premiums"},
		},
		{
			ID:          "dental",
			Title:       "Dental Coverage",
			Description: "Comprehensive dental plans covering preventive care, basic procedures, and major dental work.",
			Benefits:    []string{"Preventive care 100% covered", "Large provider network", "Orthodontic options"},
		},
		{
			ID:          "vision",
			Title:       "Vision Plans",
			Description: "Quality vision coverage including annual exams, glasses, and contact lenses at affordable rates.",
			Benefits:    []string{"Annual eye exams", "Frames and lenses", "Contact lens coverage"},
		},
	}
}

func defaultTestimonials() []site.Testimonial {
	return []site.Testimonial{
		{
			Quote: "Finding the right health insurance was overwhelming until I worked with this team. " +
				"They made everything simple and found me a plan that fit my budget perfectly.",
			Author:   "Sarah M.",
			Location: "Miami, FL",
			Rating:   5,
		},
		{
			Quote: "As a small business owner, I needed help finding group coverage for my employees. " +
				"The process was seamless and my team is now well protected.",
			Author:   "Michael R.",
			Location: "Dallas, TX",
			Rating:   5,
		},
		{
			Quote: "I was skeptical about private health insurance, but the savings compared to my old plan " +
				"were incredible. Plus, I have better coverage now!",
			Author:   "Jennifer L.",
			Location: "Phoenix, AZ",
			Rating:   5,
		},
		{
			Quote: "The personal attention I received was amazing. They took the time to understand my " +
				"family's needs and found us the perfect plan.",
			Author:   "David K.",
			Location: "Atlanta, GA",
			Rating:   5,
		},
		{
			Quote: "Quick, professional, and truly cared about getting me the best coverage. " +
				"Highly recommend to anyone looking for health insurance!",
			Author:   "Amanda T.",
			Location: "Denver, CO",
			Rating:   5,
		},
	}
}

func defaultSteps() []site.ProcessStep {
	return []site.ProcessStep{
		{Step: 1, Title: "Free Consultation", Description: "Schedule a no-obligation call to discuss your coverage needs and budget."},
		{Step: 2, Title: "Personalized Options", Description: "Receive a customized selection of plans tailored to your specific situation."},
		{Step: 3, Title: "Easy Enrollment", Description: "Complete your enrollment with guided support every step of the way."},
	}
}
