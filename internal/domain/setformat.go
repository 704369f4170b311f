package domain

// SetFormatType enumerates the supported set formats.
type SetFormatType int

const (
	FormatFriendlies SetFormatType = iota
	FormatPractice
	FormatBo3
	FormatBo5
	FormatBo7
	FormatFT5
	FormatFT10
	FormatOther
)

// SetFormat describes how matches between the same players group into a set.
// Only the best-of and first-to formats carry a win count that auto-closes a
// set; friendlies, practice and free-form sets run until the players change.
type SetFormat struct {
	Type SetFormatType
	// Desc holds the free-form description for FormatOther. Ignored for
	// every other type.
	Desc string
}

var formatDescriptions = map[SetFormatType]string{
	FormatFriendlies: "Friendlies",
	FormatPractice:   "Practice",
	FormatBo3:        "Bo3",
	FormatBo5:        "Bo5",
	FormatBo7:        "Bo7",
	FormatFT5:        "FT5",
	FormatFT10:       "FT10",
}

// winsToTakeSet maps each auto-closing format to the win count that ends a
// set. Formats absent from this table never auto-close.
var winsToTakeSet = map[SetFormatType]int{
	FormatBo3:  2,
	FormatBo5:  3,
	FormatBo7:  4,
	FormatFT5:  5,
	FormatFT10: 10,
}

func (f SetFormat) Description() string {
	if f.Type == FormatOther {
		if f.Desc == "" {
			return "Other"
		}
		return f.Desc
	}
	return formatDescriptions[f.Type]
}

// WinsRequired returns the number of wins that closes a set under this
// format, or 0 if the format never auto-closes.
func (f SetFormat) WinsRequired() int {
	return winsToTakeSet[f.Type]
}

// SetFormatFromDescription parses a description back into a SetFormat.
// Unknown descriptions become FormatOther carrying the original text, so
// formats written by other tools round-trip through the replay document.
func SetFormatFromDescription(desc string) SetFormat {
	for t, d := range formatDescriptions {
		if d == desc {
			return SetFormat{Type: t}
		}
	}
	return SetFormat{Type: FormatOther, Desc: desc}
}
