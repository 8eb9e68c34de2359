package patient

// Catalog is the fixed set of patient archetypes. Arrivals pick one uniformly at random.
var Catalog = []Archetype{
	{
		Name:      "Cardi la Beef Dragon",
		Condition: "Avvelenamento da Diss Track",
		Urgency:   UrgencyHigh,
		ImageURL:  "/static/images/cardi.png",
	},
	{
		Name:      "Vittorio il Critico Infuriato",
		Condition: "Maledizione da Cafone",
		Urgency:   UrgencyMedium,
		ImageURL:  "/static/images/sgarbi.png",
	},
	{
		Name:      "Rita la TikToker Esplosiva",
		Condition: "Avvelenamento da Belve",
		Urgency:   UrgencyHigh,
		ImageURL:  "/static/images/rita.png",
	},
	{
		Name:      "Tina la Vamp Opinionista",
		Condition: "Ferita da Trash TV",
		Urgency:   UrgencyMedium,
		ImageURL:  "/static/images/tina.png",
	},
	{
		Name:      "Sara la Torreste Esaurita",
		Condition: "Esaurimento da Torre Annunziata",
		Urgency:   UrgencyLow,
		ImageURL:  "/static/images/sara.png",
	},
	{
		Name:      "Kim la Cry Queen",
		Condition: "Crisi da Meme Face",
		Urgency:   UrgencyMedium,
		ImageURL:  "/static/images/kim.png",
	},
	{
		Name:      "Giucas l'Hypno Esaurito",
		Condition: "Ipnosi Fallita da Reality",
		Urgency:   UrgencyHigh,
		ImageURL:  "/static/images/Giucas.png",
	},
}

// RandomEvents are the flavor texts fired by the event generator.
// The effects they announce are not applied to the game mechanics.
var RandomEvents = []string{
	"🔴 Codice Rosso: Arrivo massiccio di pazienti!",
	"⚡ Blackout ospedaliero: Medici rallentati!",
	"💊 Scorte mediche esaurite: Cure meno efficaci!",
	"⭐ VIP in arrivo: Bonus punti speciali!",
	"🦠 Epidemia controllata: Tutti i medici disponibili!",
	"🎉 Giornata fortunata: Punteggio raddoppiato!",
	"😷 Protocollo sicurezza: Medici protetti!",
	"📰 Giornalisti all'ingresso: Pressione aumentata!",
}
