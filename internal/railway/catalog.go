// Package railway simulates the enquiry backend behind the IVR menus:
// a station catalog, the timetable, and the canned replies spoken after a
// caller completes an enquiry. Replies vary with the collected data but are
// fully deterministic.
package railway

import "github.com/praveen131106/ivr-modern/pkg/intent"

// Stations is the catalog used for station recognition.
var Stations = []intent.Station{
	{Name: "Mumbai", Aliases: []string{"Bombay", "Mumbai Central", "CSMT"}},
	{Name: "New Delhi", Aliases: []string{"Delhi"}},
	{Name: "Chennai", Aliases: []string{"Madras", "Chennai Central"}},
	{Name: "Kolkata", Aliases: []string{"Calcutta", "Howrah"}},
	{Name: "Bengaluru", Aliases: []string{"Bangalore"}},
	{Name: "Hyderabad", Aliases: []string{"Secunderabad"}},
	{Name: "Pune"},
	{Name: "Ahmedabad"},
	{Name: "Jaipur"},
	{Name: "Lucknow"},
	{Name: "Patna"},
	{Name: "Bhopal"},
	{Name: "Varanasi", Aliases: []string{"Banaras", "Benares"}},
	{Name: "Thiruvananthapuram", Aliases: []string{"Trivandrum"}},
	{Name: "Kochi", Aliases: []string{"Cochin", "Ernakulam"}},
	{Name: "Coimbatore"},
	{Name: "Madurai"},
	{Name: "Visakhapatnam", Aliases: []string{"Vizag"}},
	{Name: "Nagpur"},
	{Name: "Goa", Aliases: []string{"Madgaon"}},
}

// Train is a timetable entry.
type Train struct {
	Number    string
	Name      string
	Departure string
	Arrival   string
	Duration  string
}

// Timetable lists the trains the simulator knows by number.
var Timetable = []Train{
	{Number: "12718", Name: "Ratnachal Express", Departure: "8:45 AM", Arrival: "5:30 PM", Duration: "8 hours 45 minutes"},
	{Number: "17018", Name: "Superfast Express", Departure: "6:00 AM", Arrival: "2:15 PM", Duration: "8 hours 15 minutes"},
	{Number: "12009", Name: "Shatabdi Express", Departure: "7:30 AM", Arrival: "1:45 PM", Duration: "6 hours 15 minutes"},
	{Number: "12345", Name: "Rajdhani Express", Departure: "10:00 AM", Arrival: "6:30 PM", Duration: "8 hours 30 minutes"},
}

var defaultTrain = Train{Departure: "8:00 AM", Arrival: "6:00 PM", Duration: "10 hours"}

// LookupTrain returns the timetable entry for number, or a generic one.
func LookupTrain(number string) Train {
	for _, t := range Timetable {
		if t.Number == number {
			return t
		}
	}
	t := defaultTrain
	t.Number = number
	return t
}

// classInfo maps canonical class codes to a spoken label and a fare band.
var classInfo = map[string]struct {
	label    string
	min, max int
}{
	"sleeper":   {"Sleeper", 300, 800},
	"ac":        {"AC", 800, 1500},
	"ac_3_tier": {"AC 3 Tier", 800, 1500},
	"ac_2_tier": {"AC 2 Tier", 1500, 2500},
	"first_ac":  {"First AC", 3000, 5000},
	"tatkal":    {"Tatkal", 600, 1800},
	"general":   {"General", 100, 300},
}

// ClassLabel returns the spoken name of a class code.
func ClassLabel(code string) string {
	if c, ok := classInfo[code]; ok {
		return c.label
	}
	if code == "" {
		return "Sleeper"
	}
	return code
}
