package brackets

import "strings"

// TBD is the placeholder stored in a slot whose player is not known yet.
// Bye is the canonical spelling of a walkover opponent.
const (
	TBD = "TBD"
	Bye = "BYE"
)

// Player slots of a match. Winners of odd-numbered matches land in slot 1
// of their destination, winners of even-numbered matches in slot 2.
const (
	SlotPlayer1 = 1
	SlotPlayer2 = 2
)

// NormalizeName trims a raw drawn name and substitutes TBD for blanks.
func NormalizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return TBD
	}
	return name
}

// NormalizeSlot returns the stored form of a raw name and seed.
// TBD and BYE slots never keep a seed, and byes are canonicalized to "BYE"
// whatever their letter case in the source draw.
func NormalizeSlot(rawName string, seed *int) (string, *int) {
	name := NormalizeName(rawName)
	if name == TBD {
		return TBD, nil
	}
	if IsBye(name) {
		return Bye, nil
	}
	return name, seed
}

// IsBye reports whether a name marks a walkover slot.
func IsBye(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), Bye)
}

// IsTBD reports whether a name is the undecided placeholder.
func IsTBD(name string) bool {
	return strings.TrimSpace(name) == TBD
}

// DestinationMatchNumber returns the match number in the next round that
// the winner of the given match feeds into. Matches 1 and 2 feed match 1,
// matches 3 and 4 feed match 2, and so on.
func DestinationMatchNumber(matchNumber int) int {
	return (matchNumber + 1) / 2
}

// DestinationSlot returns the player slot of the destination match that
// the winner of the given match occupies.
func DestinationSlot(matchNumber int) int {
	if matchNumber%2 == 1 {
		return SlotPlayer1
	}
	return SlotPlayer2
}
