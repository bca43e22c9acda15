package crawler

import "sjsage522/eventworker/internal/extract"

// FitnessKeywords categorises races and fitness events. Order matters:
// the first keyword found decides the category.
var FitnessKeywords = extract.Keywords{
	{Name: "Running", Subcategories: []extract.Subcategory{
		{Name: "Road running", Keywords: []string{
			"5k", "5km", "5 k", "5 km", "10k", "10km", "10 k", "10 km",
			"half marathon", "half-marathon", "halfmarathon", "full marathon",
			"marathon", "ultra", "ultramarathon", "ultra marathon", "ultra-marathon",
		}},
		{Name: "Endurance races", Keywords: []string{"endurance", "endurance race", "long distance", "ultra distance"}},
		{Name: "Adventure running", Keywords: []string{"adventure run", "adventure running", "adventure race"}},
		{Name: "Trail running", Keywords: []string{"trail run", "trail running", "trail race", "trail", "off road"}},
		{Name: "Park runs", Keywords: []string{"parkrun", "park run"}},
		{Name: "Charity runs", Keywords: []string{"charity run", "charity running", "charity race", "fundraising"}},
		{Name: "Fun runs", Keywords: []string{"fun run", "fun running", "fun race"}},
		{Name: "Obstacle courses", Keywords: []string{"obstacle course", "obstacle race", "obstacle run", "mud run", "mud race"}},
		{Name: "Inflatable courses", Keywords: []string{"inflatable", "bouncy", "inflatable course", "inflatable race"}},
	}},
	{Name: "Cycling", Subcategories: []extract.Subcategory{
		{Name: "Sportives", Keywords: []string{"sportive", "sportif", "cycling sportive", "bike sportive"}},
		{Name: "Time Trials", Keywords: []string{"time trial", "tt", "cycling time trial", "bike time trial"}},
		{Name: "Road Races", Keywords: []string{"road race", "cycling race", "bike race", "road cycling"}},
		{Name: "Cyclocross", Keywords: []string{"cyclocross", "cx", "cross", "cyclo-cross"}},
		{Name: "Mountain Biking", Keywords: []string{"mountain bike", "mtb", "mountain biking", "off road cycling"}},
		{Name: "Track Cycling", Keywords: []string{"track cycling", "velodrome", "track race", "track bike"}},
		{Name: "Charity & Challenge Rides", Keywords: []string{"charity ride", "challenge ride", "charity cycling", "fundraising ride"}},
	}},
	{Name: "Swimming", Subcategories: []extract.Subcategory{
		{Name: "Open Water Swims", Keywords: []string{"open water", "open water swim", "sea swim", "lake swim", "river swim"}},
		{Name: "Pool Meets", Keywords: []string{"pool meet", "pool swimming", "pool race", "swimming meet"}},
		{Name: "Swim Runs", Keywords: []string{"swim run", "swimrun", "swim-run", "aquathlon"}},
		{Name: "Channel/Distance Swims", Keywords: []string{"channel swim", "distance swim", "long distance swim", "marathon swim"}},
	}},
	{Name: "Functional Fitness", Subcategories: []extract.Subcategory{
		{Name: "CrossFit Competitions", Keywords: []string{"crossfit", "cross fit", "crossfit competition", "crossfit games"}},
		{Name: "Hyrox / DEKA FIT", Keywords: []string{"hyrox", "deka fit", "deka", "hyrox race", "deka race"}},
		{Name: "Obstacle Fitness Events", Keywords: []string{"obstacle fitness", "fitness obstacle", "fitness challenge"}},
		{Name: "Bootcamps & Fitness Challenges", Keywords: []string{"bootcamp", "fitness challenge", "fitness bootcamp", "challenge"}},
	}},
	{Name: "Multi-Discipline", Subcategories: []extract.Subcategory{
		{Name: "Triathlon", Keywords: []string{"triathlon", "tri", "triathlete", "triathlon race"}},
		{Name: "Duathlon", Keywords: []string{"duathlon", "du", "duathlete", "duathlon race"}},
		{Name: "Aquathlon", Keywords: []string{"aquathlon", "aqua", "aquathlete", "aquathlon race"}},
		{Name: "Adventure Races", Keywords: []string{"adventure race", "multi sport", "multi-sport", "adventure challenge"}},
	}},
}

// WellnessKeywords categorises retreats and classes.
var WellnessKeywords = extract.Keywords{
	{Name: "Wellness & Mind", Subcategories: []extract.Subcategory{
		{Name: "Mindfulness", Keywords: []string{"mindfulness", "mindful", "meditation", "meditate", "mbsr", "mbct"}},
		{Name: "Yoga and Pilates", Keywords: []string{"yoga", "pilates", "vinyasa", "hatha"}},
		{Name: "Retreats", Keywords: []string{"retreat", "silent", "weekend away"}},
		{Name: "Breathwork", Keywords: []string{"breathwork", "breathing", "pranayama"}},
	}},
}
