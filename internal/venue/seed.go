package venue

// seedRows is the built-in catalog used before the first directory sync
// and when the directory is unreachable.
var seedRows = []Row{
	{
		"id":               "hong-kong-victoria-harbor",
		"name":             "Victoria Harbour",
		"region":           "asia-pacific",
		"country":          "Hong Kong",
		"city":             "Hong Kong",
		"timezone":         "Asia/Hong_Kong",
		"languages":        []any{"en", "zh-HK"},
		"latitude":         22.3193,
		"longitude":        114.1694,
		"detection_radius": 15000.0,
		"venue_type":       "championship",
		"primary_use":      "racing",
		"water_type":       "harbour",
		"protection_level": "sheltered",
		"average_depth":    12.0,
		"tidal_range":      2.0,
		"best_conditions":  "October to March, when the northeast monsoon brings steady 12-18 knot breezes.",
		"hazards":          []any{"Heavy commercial and ferry traffic", "Strong tidal currents near the harbour entrance"},
		"safety_considerations": []any{
			"Monitor VHF channel 12 for Marine Department traffic control",
			"Typhoon signals suspend racing; know the nearest shelter",
		},
		"cultural_notes": []any{"Racing etiquette follows Royal Hong Kong Yacht Club traditions"},
		"tips":           []any{"Expect wind shadows from the skyline close to Kowloon"},
	},
	{
		"id":               "san-francisco-bay",
		"name":             "San Francisco Bay",
		"region":           "north-america",
		"country":          "United States",
		"city":             "San Francisco",
		"timezone":         "America/Los_Angeles",
		"languages":        []any{"en"},
		"latitude":         37.8085,
		"longitude":        -122.4098,
		"detection_radius": 12000.0,
		"venue_type":       "championship",
		"primary_use":      "racing",
		"water_type":       "bay",
		"protection_level": "exposed",
		"average_depth":    14.0,
		"tidal_range":      1.8,
		"best_conditions":  "Summer afternoons bring a reliable westerly sea breeze of 15-25 knots.",
		"hazards":          []any{"Strong ebb currents under the Golden Gate", "Shipping lanes"},
		"tips":             []any{"Play the current relief along the city front"},
	},
	{
		"id":               "solent-cowes",
		"name":             "The Solent",
		"region":           "europe",
		"country":          "United Kingdom",
		"city":             "Cowes",
		"timezone":         "Europe/London",
		"languages":        []any{"en"},
		"latitude":         50.7667,
		"longitude":        -1.3000,
		"detection_radius": 15000.0,
		"venue_type":       "championship",
		"primary_use":      "racing",
		"water_type":       "strait",
		"protection_level": "moderate",
		"average_depth":    15.0,
		"tidal_range":      4.0,
		"hazards":          []any{"Complex double high tides", "Bramble Bank at low water"},
	},
	{
		"id":               "sydney-harbour",
		"name":             "Sydney Harbour",
		"region":           "oceania",
		"country":          "Australia",
		"city":             "Sydney",
		"timezone":         "Australia/Sydney",
		"languages":        []any{"en"},
		"latitude":         -33.8568,
		"longitude":        151.2153,
		"detection_radius": 10000.0,
		"venue_type":       "premier",
		"primary_use":      "racing",
		"water_type":       "harbour",
		"protection_level": "sheltered",
		"average_depth":    13.0,
		"tidal_range":      1.6,
	},
}
