package models

func sampleBundle() *AssetBundle {
	return &AssetBundle{
		EpisodeTitles:   []string{"The Quiet Pivot", "Why Founders Stall", "Ship the Boring Thing"},
		Hook:            "Most founders never notice the week their company stopped growing.",
		ShowNotes:       "We talk about stalls, pivots and the boring work.",
		BlogPost:        "## The stall\nIt starts slowly.",
		Timestamps:      []Timestamp{{Time: "00:00:05", Topic: "Welcome"}, {Time: "00:01:10", Topic: "Guest intro"}},
		NewsletterDraft: "This week: the quiet pivot.",
		GuestSwipeEmail: "Subject: I was on a podcast",
		LinkedinCarousel: []CarouselSlide{
			{SlideNumber: 1, Title: "Stalls", Content: "They are quiet."},
			{SlideNumber: 2, Title: "Signals", Content: "Churn first."},
			{SlideNumber: 3, Title: "Response", Content: "Talk to users."},
			{SlideNumber: 4, Title: "Pivot", Content: "Small moves."},
			{SlideNumber: 5, Title: "Ship", Content: "Boring wins."},
		},
		ViralQuotes: []string{"Growth dies quietly.", "Boring is a feature.", "Ask, then build."},
		SocialHooks: []SocialHook{
			{Platform: "Twitter", Content: "Your company can stall without a single bad week."},
			{Platform: "LinkedIn", Content: "Three signals you are stalling."},
			{Platform: "Instagram", Content: "Boring wins."},
		},
		YouTube: YouTubeAssets{
			Titles:        []string{"I Stalled For A Year", "The Quiet Pivot", "Boring Wins"},
			Description:   "A conversation about stalls.",
			ThumbnailText: []string{"STALLED", "PIVOT", "BORING"},
			Tags:          []string{"startups", "founders"},
			Shorts: []Short{
				{Timestamp: "00:01:10", Hook: "Nobody tells you this", Score: 9},
				{Timestamp: "00:03:00", Hook: "Churn first", Score: 7},
				{Timestamp: "00:05:30", Hook: "Boring wins", Score: 6},
			},
		},
	}
}
