// Package fields holds the extraction helpers shared by every marketplace
// adapter: ordered selector strategies, regex field matchers and the
// amenity vocabulary.
package fields

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrFieldAbsent means every strategy ran cleanly and found nothing.
	ErrFieldAbsent = errors.New("field absent")
	// ErrExtraction means a strategy itself blew up, which points at a bug
	// in the extraction logic rather than at the page.
	ErrExtraction = errors.New("extraction failed")
)

// FieldError reports that one field of a card could not be extracted.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("field %s: %v", e.Field, e.Err) }
func (e *FieldError) Unwrap() error { return e.Err }

// Strategy pulls one candidate value out of an element.
type Strategy func(sel *goquery.Selection) string

// Chain is an ordered list of strategies; the first non-empty result wins.
type Chain []Strategy

// Resolve evaluates the chain against sel.
func (c Chain) Resolve(field string, sel *goquery.Selection) (val string, err error) {
	defer func() {
		if r := recover(); r != nil {
			val, err = "", &FieldError{Field: field, Err: fmt.Errorf("%w: %v", ErrExtraction, r)}
		}
	}()

	for _, s := range c {
		if v := strings.TrimSpace(s(sel)); v != "" {
			return v, nil
		}
	}
	return "", &FieldError{Field: field, Err: ErrFieldAbsent}
}

// Text reads the collapsed text of the first element matching selector.
func Text(selector string) Strategy {
	return func(sel *goquery.Selection) string {
		return CollapseSpace(sel.Find(selector).First().Text())
	}
}

// Attr reads an attribute of the first element matching selector.
func Attr(selector, attr string) Strategy {
	return func(sel *goquery.Selection) string {
		v, _ := sel.Find(selector).First().Attr(attr)
		return v
	}
}

// JoinedText joins the text of every element matching selector with sep.
func JoinedText(selector, sep string) Strategy {
	return func(sel *goquery.Selection) string {
		var parts []string
		sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if t := CollapseSpace(s.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		return strings.Join(parts, sep)
	}
}

// Card wraps one card's markup and records which fields fell back to defaults.
type Card struct {
	Sel    *goquery.Selection
	Errors []error
}

// NewCard parses a card's outer HTML.
func NewCard(html string) (*Card, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("fields: parse card: %w", err)
	}
	return &Card{Sel: doc.Selection}, nil
}

// String resolves a field, defaulting to "" and remembering the failure.
func (c *Card) String(field string, chain Chain) string {
	v, err := chain.Resolve(field, c.Sel)
	if err != nil {
		c.Errors = append(c.Errors, err)
	}
	return v
}

// Missing lists the names of fields that resolved to their default.
func (c *Card) Missing() []string {
	var out []string
	for _, err := range c.Errors {
		var fe *FieldError
		if errors.As(err, &fe) {
			out = append(out, fe.Field)
		}
	}
	return out
}

// Broken returns the field errors caused by faulty strategies.
func (c *Card) Broken() []error {
	var out []error
	for _, err := range c.Errors {
		if errors.Is(err, ErrExtraction) {
			out = append(out, err)
		}
	}
	return out
}
