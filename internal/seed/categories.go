package seed

// category is one entry of the demo category catalogue. Needs store the
// slug; the label and the typical cost range only shape generated data.
type category struct {
	Slug        string
	Label       string
	OrgType     string
	MinCost     int
	MaxCost     int
	Perishable  bool
	ServiceLike bool
	Items       []string
}

// categories is the source of truth for seeded needs. Add an entry here to
// have `needsmatch seed` start generating needs for it.
var categories = []category{
	{
		Slug:       "food",
		Label:      "Food & Nutrition",
		OrgType:    "food bank",
		MinCost:    2,
		MaxCost:    15,
		Perishable: true,
		Items:      []string{"Canned vegetables", "Infant formula", "Fresh produce boxes", "Rice, 10lb bags", "Peanut butter"},
	},
	{
		Slug:    "shelter",
		Label:   "Housing & Shelter",
		OrgType: "shelter",
		MinCost: 20,
		MaxCost: 90,
		Items:   []string{"Sleeping bags", "Twin mattresses", "Blankets", "Air mattresses"},
	},
	{
		Slug:    "clothing",
		Label:   "Clothing",
		OrgType: "clothing closet",
		MinCost: 5,
		MaxCost: 60,
		Items:   []string{"Winter coats", "Work boots", "Socks, 6 pack", "School uniforms"},
	},
	{
		Slug:    "hygiene",
		Label:   "Hygiene & Personal Care",
		OrgType: "shelter",
		MinCost: 1,
		MaxCost: 12,
		Items:   []string{"Diapers, size 4", "Toothbrush kits", "Menstrual products", "Soap bars"},
	},
	{
		Slug:        "community",
		Label:       "Community Service",
		OrgType:     "community center",
		MinCost:     0,
		MaxCost:     10,
		ServiceLike: true,
		Items:       []string{"Pantry sorting shift", "Tutoring hour", "Meal delivery route", "Park cleanup"},
	},
}
