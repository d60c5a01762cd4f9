package railway

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Responder renders the reply for a completed enquiry from the collected data.
type Responder func(data map[string]string) string

// Registry maps responder names, as referenced by flow documents, to implementations.
type Registry map[string]Responder

// Responders returns the built-in registry.
func Responders() Registry {
	return Registry{
		"train_status":                     trainStatus,
		"train_schedule":                   trainSchedule,
		"booking_confirmation":             bookingConfirmation,
		"cancellation_confirmation":        cancellationConfirmation,
		"connect_agent":                    connectAgent,
		"pnr_status_response":              pnrStatus,
		"seat_availability_response":       seatAvailability,
		"fare_response":                    fare,
		"trains_between_stations_response": trainsBetweenStations,
	}
}

// Names lists the registered responders in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Respond runs the named responder. It reports false for unknown names.
func (r Registry) Respond(name string, data map[string]string) (string, bool) {
	fn, ok := r[name]
	if !ok {
		return "", false
	}
	return fn(data), true
}

// seed hashes the inputs so the same enquiry always gets the same answer.
func seed(parts ...string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.Join(parts, "\x1f")))
	return h.Sum32()
}

func between(s uint32, lo, hi int) int {
	return lo + int(s%uint32(hi-lo+1))
}

func get(data map[string]string, key, fallback string) string {
	if v := data[key]; v != "" {
		return v
	}
	return fallback
}

var runningStatuses = []string{
	"Great news! Train %s is running exactly on schedule.",
	"I've checked, and Train %s is running approximately 10 minutes behind schedule. Not to worry, this is a minor delay.",
	"I'm sorry to inform you that Train %s is currently running about 30 minutes late. We apologize for any inconvenience.",
	"Unfortunately, Train %s is experiencing a delay of approximately 1 hour. We apologize for the inconvenience.",
}

func trainStatus(data map[string]string) string {
	number := get(data, "train_number", "12718")
	return fmt.Sprintf(runningStatuses[seed("status", number)%uint32(len(runningStatuses))], number)
}

func trainSchedule(data map[string]string) string {
	t := LookupTrain(get(data, "train_number", "17018"))
	return fmt.Sprintf("Train %s departs at %s and arrives at %s. The total journey time is %s.",
		t.Number, t.Departure, t.Arrival, t.Duration)
}

// BookingPNR derives the PNR issued for a booking.
func BookingPNR(data map[string]string) string {
	s := seed("pnr", data["train_number"], data["class"], data["source_station"], data["destination_station"])
	return fmt.Sprintf("%d", 1000000000+uint64(s)%9000000000)
}

func bookingConfirmation(data map[string]string) string {
	return fmt.Sprintf("Excellent! Your booking has been confirmed. You have booked a %s class ticket on Train %s. "+
		"Your PNR number is %s. Please save this PNR for future reference.",
		ClassLabel(data["class"]), get(data, "train_number", "12718"), BookingPNR(data))
}

func cancellationConfirmation(data map[string]string) string {
	pnr := get(data, "pnr", "on file")
	refund := between(seed("refund", pnr), 500, 2000)
	return fmt.Sprintf("I've cancelled your ticket with PNR %s. Your refund of Rs %d will be credited to your "+
		"original payment method within 5 to 7 business days.", pnr, refund)
}

func connectAgent(map[string]string) string {
	return "I'm connecting you to one of our customer support agents. Please hold for just a moment, and someone will be with you shortly."
}

var (
	pnrStatuses = []string{"Confirmed", "Waiting List", "Reservation Against Cancellation", "Confirmed"}
	berths      = []string{"Lower Berth", "Middle Berth", "Upper Berth", "Side Lower", "Side Upper"}
)

func pnrStatus(data map[string]string) string {
	pnr := get(data, "pnr", "on file")
	s := seed("pnr_status", pnr)
	status := pnrStatuses[s%uint32(len(pnrStatuses))]
	berth := berths[(s/7)%uint32(len(berths))]
	coach := fmt.Sprintf("A%d", 1+(s/13)%10)
	if data["class"] == "sleeper" {
		coach = fmt.Sprintf("S%d", 1+(s/13)%15)
	}
	return fmt.Sprintf("Thank you. Your ticket with PNR %s is %s. You have been assigned %s in Coach %s.", pnr, status, berth, coach)
}

func seatAvailability(data map[string]string) string {
	number := get(data, "train_number", "12718")
	class := ClassLabel(data["class"])
	date := get(data, "travel_date", "tomorrow")
	s := seed("seats", number, data["class"], date)
	return fmt.Sprintf("For Train %s on %s in %s class there are %d seats available and %d on the waiting list.",
		number, date, class, between(s, 5, 50), between(s/51, 0, 20))
}

func fare(data map[string]string) string {
	number := get(data, "train_number", "12718")
	code := get(data, "class", "sleeper")
	amount := 500
	if c, ok := classInfo[code]; ok {
		amount = between(seed("fare", number, code), c.min, c.max)
	}
	return fmt.Sprintf("The fare for Train %s in %s class is Rs %d, including reservation charges.",
		number, ClassLabel(code), amount)
}

func trainsBetweenStations(data map[string]string) string {
	src := get(data, "source_station", "your source")
	dst := get(data, "destination_station", "your destination")
	start := int(seed("route", src, dst) % uint32(len(Timetable)))

	var b strings.Builder
	fmt.Fprintf(&b, "I found 3 trains running between %s and %s.", src, dst)
	for i := 0; i < 3; i++ {
		t := Timetable[(start+i)%len(Timetable)]
		fmt.Fprintf(&b, " Train %s %s departs at %s and arrives at %s.", t.Number, t.Name, t.Departure, t.Arrival)
	}
	return b.String()
}
