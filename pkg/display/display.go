// Package display formats ledger identifiers, quantities and transaction
// trees for people.
package display

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Fairmint/canton/pkg/jsonapi"
)

const maxFractionDigits = 10

var (
	hexPattern    = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

// shorten keeps the first and last six characters of s when it is longer
// than limit.
func shorten(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:6]) + ".." + string(runes[len(runes)-6:])
}

// TruncatePartyID shortens both halves of a "hint::fingerprint" party id.
// Ids of any other shape are returned unchanged.
func TruncatePartyID(partyID string) string {
	parts := strings.Split(partyID, "::")
	if len(parts) != 2 {
		return partyID
	}
	return shorten(parts[0], 16) + "::" + shorten(parts[1], 12)
}

func TruncateContractID(contractID string) string {
	return shorten(contractID, 12)
}

// TruncateTemplateID splits a template id into its package and module
// prefix, with the package shortened, and the entity name shown in bold.
func TruncateTemplateID(templateID string) (prefix string, entity string) {
	parts := strings.Split(templateID, ":")
	if len(parts) < 2 {
		return templateID, ""
	}
	head := append([]string{shorten(parts[0], 12)}, parts[1:len(parts)-1]...)
	return strings.Join(head, ":"), parts[len(parts)-1]
}

// FormatNumber renders value with en-US thousands separators and at most
// ten fraction digits. Values that are not numbers come back unchanged.
func FormatNumber(value string) string {
	number, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return value
	}
	return FormatDecimal(number)
}

func FormatDecimal(number decimal.Decimal) string {
	text := number.Round(maxFractionDigits).String()
	sign := ""
	if strings.HasPrefix(text, "-") {
		sign, text = "-", text[1:]
	}
	whole, fraction, _ := strings.Cut(text, ".")
	fraction = strings.TrimRight(fraction, "0")
	if sign != "" && strings.Trim(whole, "0") == "" && fraction == "" {
		sign = ""
	}

	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(digit)
	}
	if fraction == "" {
		return sign + grouped.String()
	}
	return sign + grouped.String() + "." + fraction
}

type InputKind int

const (
	Unknown InputKind = iota
	ContractID
	UpdateID
	Offset
)

func (k InputKind) String() string {
	switch k {
	case ContractID:
		return "contract_id"
	case UpdateID:
		return "update_id"
	case Offset:
		return "offset"
	default:
		return "unknown"
	}
}

// Classify guesses what a free-form explorer search refers to. Contract ids
// are hex strings longer than 68 characters starting with 00, update ids are
// other hex strings longer than 20 characters, offsets are plain digits.
func Classify(input string) InputKind {
	input = strings.TrimSpace(input)
	isHex := hexPattern.MatchString(input)
	switch {
	case isHex && len(input) > 68 && strings.HasPrefix(input, "00"):
		return ContractID
	case isHex && len(input) > 20:
		return UpdateID
	case digitsPattern.MatchString(input):
		return Offset
	default:
		return Unknown
	}
}

// RenderTree writes tree as an indented outline, children under the
// exercise that produced them.
func RenderTree(w io.Writer, tree *jsonapi.TransactionTree) error {
	if tree == nil {
		_, err := fmt.Fprintln(w, "no transaction")
		return err
	}
	if _, err := fmt.Fprintf(w, "Update %s at offset %s\n", tree.UpdateID, tree.Offset); err != nil {
		return err
	}
	if tree.RecordTime != "" {
		if _, err := fmt.Fprintf(w, "Recorded %s\n", tree.RecordTime); err != nil {
			return err
		}
	}
	for _, event := range tree.RootEvents() {
		if err := renderEvent(w, tree, event, 1); err != nil {
			return err
		}
	}
	return nil
}

func renderEvent(w io.Writer, tree *jsonapi.TransactionTree, event jsonapi.TreeEvent, depth int) error {
	if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), describeEvent(event)); err != nil {
		return err
	}
	for _, child := range tree.Children(event) {
		if err := renderEvent(w, tree, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func describeEvent(event jsonapi.TreeEvent) string {
	_, entity := TruncateTemplateID(event.TemplateID())
	switch {
	case event.Created != nil:
		return fmt.Sprintf("[%s] created %s %s", event.Key, entity, TruncateContractID(event.Created.ContractID))
	case event.Exercised != nil:
		consuming := ""
		if event.Exercised.Consuming {
			consuming = " (consuming)"
		}
		return fmt.Sprintf("[%s] exercised %s on %s %s%s", event.Key, event.Exercised.Choice, entity,
			TruncateContractID(event.Exercised.ContractID), consuming)
	case event.Archived != nil:
		return fmt.Sprintf("[%s] archived %s %s", event.Key, entity, TruncateContractID(event.Archived.ContractID))
	default:
		return fmt.Sprintf("[%s] %s", event.Key, event.Kind)
	}
}
