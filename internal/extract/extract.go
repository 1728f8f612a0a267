package extract

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/shelfcrawl/internal/model"
)

var (
	// ErrFieldMissing is wrapped by Result.Err when a required field is absent.
	ErrFieldMissing = errors.New("required field missing")

	// ErrNotHTML is wrapped by Result.Err for bodies that are not HTML.
	ErrNotHTML = errors.New("content is not HTML")

	// ErrParse is wrapped by Result.Err when the body cannot be parsed.
	ErrParse = errors.New("failed to parse HTML")

	// ErrInvalidRule is returned by New for rules that cannot be compiled.
	ErrInvalidRule = errors.New("invalid extraction rule")
)

// Page is the input to an Extractor.
type Page struct {
	// URL is the final URL of the page, used to resolve relative links.
	URL string

	// ContentType is the response Content-Type header. May be empty.
	ContentType string

	// Body is the raw response body.
	Body []byte
}

// Result is the outcome of extracting one page.
type Result struct {
	// Record holds the extracted fields. Empty when Err is set.
	Record model.Record

	// Links are absolute URLs found on the page, in document order.
	Links []string

	// Err describes why no record could be extracted.
	Err error
}

// Extractor turns a page into a record and its outgoing links.
type Extractor interface {
	Extract(page Page) Result
}

// Rule describes how to extract one field.
type Rule struct {
	// Name is the record key.
	Name string

	// Selector is a CSS selector; the first match is used.
	Selector string

	// Attr, when set, reads this attribute instead of the element text.
	Attr string

	// Pattern, when set, is matched against the value and capture group 1
	// (or the whole match if the pattern has no groups) is kept.
	Pattern string

	// Optional fields may be absent without failing the record.
	Optional bool
}

// DefaultRules returns the rules for the books catalogue: the title heading,
// the price and the star rating encoded in a class name.
func DefaultRules() []Rule {
	return []Rule{
		{Name: model.FieldTitle, Selector: "h1"},
		{Name: model.FieldPrice, Selector: ".price_color"},
		{Name: model.FieldRating, Selector: ".star-rating", Attr: "class", Pattern: `star-rating\s+(\S+)`},
	}
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// HTMLExtractor implements Extractor with goquery selector rules.
type HTMLExtractor struct {
	rules []compiledRule
}

var _ Extractor = (*HTMLExtractor)(nil)

// New creates an HTMLExtractor. An empty rule set falls back to DefaultRules.
func New(rules []Rule) (*HTMLExtractor, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	seen := make(map[string]bool, len(rules))
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" || r.Selector == "" {
			return nil, fmt.Errorf("%w: name and selector are required", ErrInvalidRule)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidRule, r.Name)
		}
		seen[r.Name] = true

		cr := compiledRule{Rule: r}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: field %q: %w", ErrInvalidRule, r.Name, err)
			}
			cr.re = re
		}
		compiled = append(compiled, cr)
	}
	return &HTMLExtractor{rules: compiled}, nil
}

// Extract parses page and applies the rules.
func (e *HTMLExtractor) Extract(page Page) Result {
	res := Result{Record: model.Record{}}

	if !isHTML(page.ContentType) {
		res.Err = fmt.Errorf("%w: %s", ErrNotHTML, page.ContentType)
		return res
	}

	reader, err := charset.NewReader(bytes.NewReader(page.Body), page.ContentType)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrParse, err)
		return res
	}
	root, err := html.Parse(reader)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrParse, err)
		return res
	}
	doc := goquery.NewDocumentFromNode(root)

	res.Links = extractLinks(doc, page.URL)

	record := make(model.Record, len(e.rules))
	for _, r := range e.rules {
		value, ok := r.apply(doc)
		if !ok {
			if r.Optional {
				continue
			}
			res.Err = fmt.Errorf("%w: %s", ErrFieldMissing, r.Name)
			return res
		}
		record[r.Name] = value
	}
	res.Record = record
	return res
}

// apply returns the rule's value and whether it was found.
func (r compiledRule) apply(doc *goquery.Document) (string, bool) {
	sel := doc.Find(r.Selector).First()
	if sel.Length() == 0 {
		return "", false
	}

	var value string
	if r.Attr != "" {
		v, exists := sel.Attr(r.Attr)
		if !exists {
			return "", false
		}
		value = v
	} else {
		value = sel.Text()
	}

	if r.re != nil {
		m := r.re.FindStringSubmatch(value)
		switch {
		case m == nil:
			return "", false
		case len(m) > 1:
			value = m[1]
		default:
			value = m[0]
		}
	}

	value = clean(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// clean collapses whitespace runs and applies Unicode NFC normalization.
func clean(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// extractLinks returns the absolute targets of a[href] elements.
func extractLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if resolved := resolveURL(base, href); resolved != "" {
			links = append(links, resolved)
		}
	})
	return links
}

// resolveURL resolves href against base, skipping links a crawler cannot
// follow. It returns "" for skipped or unparsable links.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// isHTML reports whether contentType can hold HTML. An empty or
// unparsable header is given the benefit of the doubt.
func isHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain":
		return true
	default:
		return false
	}
}
