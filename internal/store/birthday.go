// The birthday-calendar derivation policy: one yearly-recurring VEVENT per
// contact that carries a birthdate.
package store

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

const birthdayPolicyID = "birthday-calendar"

// birthdayNamespace seeds the UUID v5 derivation of item names, so the
// same contact always maps to the same derived item name.
var birthdayNamespace = uuid.MustParse("8c912b3c-9f5a-44c5-b7fa-21d0cf6c5d2e")

// noYearPlaceholder stands in for an omitted birth year when synthesizing
// the first occurrence. 1972 is a leap year, so February 29 birthdays
// survive the round trip.
const noYearPlaceholder = 1972

const birthdayProductID = "-//mesh-intelligence//almanac//EN"

type birthdayPolicy struct{}

func (birthdayPolicy) ID() string { return birthdayPolicyID }

// Derive extracts a birthdate from every live contact and synthesizes the
// matching observance events. Contacts without a parseable birthdate, and
// payloads that do not parse as vCards at all, contribute nothing: a
// malformed contact never aborts the recomputation.
func (birthdayPolicy) Derive(items []*types.Item, logger *slog.Logger) (map[string][]byte, error) {
	target := make(map[string][]byte)
	for _, item := range items {
		card, err := vcard.NewDecoder(bytes.NewReader(item.Content)).Decode()
		if err != nil {
			logger.Warn("skipping unparseable contact", "item", item.Name, "error", err)
			continue
		}

		bday, ok := parseBirthday(card.Value(vcard.FieldBirthday))
		if !ok {
			continue
		}
		displayName := card.PreferredValue(vcard.FieldFormattedName)
		if displayName == "" {
			logger.Warn("skipping contact without display name", "item", item.Name)
			continue
		}
		contactUID := card.Value(vcard.FieldUID)
		if contactUID == "" {
			// Item names are unique within the source collection, which is
			// stable enough for derivation.
			contactUID = item.Name
		}

		name := derivedItemName(contactUID)
		content, err := synthesizeBirthdayEvent(contactUID, displayName, bday)
		if err != nil {
			return nil, fmt.Errorf("synthesizing birthday event for %q: %w", item.Name, err)
		}
		target[name] = content
	}
	return target, nil
}

// birthdate is a parsed BDAY value. Year is zero when the vCard omits it.
type birthdate struct {
	Year  int
	Month int
	Day   int
}

// parseBirthday accepts the vCard date forms: 20000502, 2000-05-02,
// --0502, and --05-02, each optionally followed by a time part, which is
// ignored.
func parseBirthday(value string) (birthdate, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return birthdate{}, false
	}
	if i := strings.IndexByte(value, 'T'); i >= 0 {
		value = value[:i]
	}

	var year, month, day string
	switch {
	case strings.HasPrefix(value, "--"):
		rest := strings.ReplaceAll(value[2:], "-", "")
		if len(rest) != 4 {
			return birthdate{}, false
		}
		month, day = rest[:2], rest[2:]
	default:
		rest := strings.ReplaceAll(value, "-", "")
		if len(rest) != 8 {
			return birthdate{}, false
		}
		year, month, day = rest[:4], rest[4:6], rest[6:]
	}

	bday := birthdate{}
	var err error
	if year != "" {
		if bday.Year, err = strconv.Atoi(year); err != nil {
			return birthdate{}, false
		}
	}
	if bday.Month, err = strconv.Atoi(month); err != nil {
		return birthdate{}, false
	}
	if bday.Day, err = strconv.Atoi(day); err != nil {
		return birthdate{}, false
	}
	if bday.Month < 1 || bday.Month > 12 || bday.Day < 1 || bday.Day > 31 {
		return birthdate{}, false
	}
	return bday, true
}

// derivedItemName maps a contact UID to its stable derived item name.
func derivedItemName(contactUID string) string {
	return uuid.NewSHA1(birthdayNamespace, []byte(contactUID)).String() + ".ics"
}

// synthesizeBirthdayEvent renders the yearly observance for one contact.
// The output is deterministic: identical inputs produce identical bytes,
// so unchanged contacts never cause a derived-item rewrite.
func synthesizeBirthdayEvent(contactUID, displayName string, bday birthdate) ([]byte, error) {
	year := bday.Year
	if year == 0 {
		year = noYearPlaceholder
	}
	date := fmt.Sprintf("%04d%02d%02d", year, bday.Month, bday.Day)

	event := ical.NewComponent(ical.CompEvent)
	event.Props.SetText(ical.PropUID, "birthday-"+contactUID)
	event.Props.SetText(ical.PropSummary, fmt.Sprintf("%s's birthday", displayName))

	start := ical.NewProp(ical.PropDateTimeStart)
	start.Params.Set(ical.ParamValue, string(ical.ValueDate))
	start.Value = date
	event.Props.Set(start)

	stamp := ical.NewProp(ical.PropDateTimeStamp)
	stamp.Value = date + "T000000Z"
	event.Props.Set(stamp)

	rrule := ical.NewProp(ical.PropRecurrenceRule)
	rrule.Value = "FREQ=YEARLY"
	event.Props.Set(rrule)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, birthdayProductID)
	cal.Children = append(cal.Children, event)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encoding calendar: %w", err)
	}
	return buf.Bytes(), nil
}
