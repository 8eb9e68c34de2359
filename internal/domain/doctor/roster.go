package doctor

// Roster is the fixed staff. Doctors get ids 1..7 in this order.
var Roster = []Profile{
	{Name: "Nicki", Specialty: "Rap Therapy", ImageURL: "/static/images/nicki.png"},
	{Name: "Barbara", Specialty: "Cultural Recovery", ImageURL: "/static/images/barbara.png"},
	{Name: "Fagnani", Specialty: "Social Media Rehab", ImageURL: "/static/images/fagnani.png"},
	{Name: "Gemma", Specialty: "TV Detox", ImageURL: "/static/images/gemma.png"},
	{Name: "Elenoire", Specialty: "Stress Management", ImageURL: "/static/images/Elenoire.png"},
	{Name: "Khloe", Specialty: "Meme Recovery", ImageURL: "/static/images/Khloe.png"},
	{Name: "Cipriani", Specialty: "Reality Rehab", ImageURL: "/static/images/Cipriani.png"},
}

// PerfectCouples grant the triple-score bonus.
var PerfectCouples = []Couple{
	{Patient: "Cardi", Doctor: "Nicki"},
	{Patient: "Sgarbi", Doctor: "Barbara"}, // No catalog patient is named Sgarbi: this pairing never matches
	{Patient: "Rita", Doctor: "Fagnani"},
	{Patient: "Tina", Doctor: "Gemma"},
	{Patient: "Sara", Doctor: "Elenoire"},
	{Patient: "Kim", Doctor: "Khloe"},
	{Patient: "Giucas", Doctor: "Cipriani"},
}
