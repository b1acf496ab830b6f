package invoice

import (
	"regexp"
	"strings"
)

// Field names an extracted invoice field
type Field string

const (
	FieldInvoiceNumber Field = "invoice_number"
	FieldVendor        Field = "vendor"
	FieldDate          Field = "date"
	FieldSubtotal      Field = "subtotal"
	FieldTaxAmount     Field = "tax_amount"
	FieldTotalAmount   Field = "total_amount"
)

// Match is the result of a rule that found something.
// Matched is false when the rule only produced a best-effort value (a raw date, a positional vendor).
type Match struct {
	Value   string
	Matched bool
}

// Rule is one named extraction attempt. Apply returns nil when the rule does not apply.
type Rule struct {
	Name  string
	Apply func(text string) *Match
}

// amountPattern captures an amount with an optional currency prefix
const amountPattern = `((?:rs\.?|inr|₹|\$|€|£)?[ \t]*-?[0-9][0-9,]*(?:\.[0-9]+)?)`

// labelRule builds a rule from a pattern with one capture group
func labelRule(name, pattern string) Rule {
	re := regexp.MustCompile(pattern)
	return Rule{
		Name: name,
		Apply: func(text string) *Match {
			m := re.FindStringSubmatch(text)
			if len(m) < 2 {
				return nil
			}
			value := strings.TrimSpace(m[1])
			if value == "" {
				return nil
			}
			return &Match{Value: value, Matched: true}
		},
	}
}

var (
	// amountTail rejects a capture that runs into a rate, a word or a second decimal point
	amountTail = regexp.MustCompile(`^(?:[ \t]*%|[\p{L}\p{N}_]|\.[0-9])`)
	// subPrefix marks a total label that is really the tail of "Sub Total"
	subPrefix = regexp.MustCompile(`(?i)\bsub[ \t\-]*$`)
)

// amountRule matches a label followed by an amount. Occurrences whose number is cut short
// or whose label follows "sub" are skipped so a later line can still win.
func amountRule(name, label string) Rule {
	re := regexp.MustCompile(`(?im)` + label + `[ \t]*[:\-]?[ \t]*` + amountPattern)
	return Rule{
		Name: name,
		Apply: func(text string) *Match {
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				line := text[:loc[0]]
				if i := strings.LastIndexByte(line, '\n'); i >= 0 {
					line = line[i+1:]
				}
				if subPrefix.MatchString(line) || amountTail.MatchString(text[loc[1]:]) {
					continue
				}
				d, ok := ParseAmount(text[loc[2]:loc[3]])
				if !ok {
					continue
				}
				return &Match{Value: d.String(), Matched: true}
			}
			return nil
		},
	}
}

// dateRule normalizes a labeled date token, skipping tokens no known layout accepts
func dateRule(name, pattern string) Rule {
	inner := labelRule(name, pattern)
	return Rule{
		Name: name,
		Apply: func(text string) *Match {
			m := inner.Apply(text)
			if m == nil {
				return nil
			}
			iso, ok := NormalizeDate(m.Value)
			if !ok {
				return nil
			}
			return &Match{Value: iso, Matched: true}
		},
	}
}

// labeledLineRule takes the text after a label on the same line, or else the next non-empty line
func labeledLineRule(name, label string) Rule {
	re := regexp.MustCompile(`(?i)` + label + `[ \t]*[:\-]?[ \t]*(.*)$`)
	return Rule{
		Name: name,
		Apply: func(text string) *Match {
			lines := strings.Split(text, "\n")
			for i, line := range lines {
				m := re.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				if v := strings.TrimSpace(m[1]); v != "" {
					return &Match{Value: v, Matched: true}
				}
				for _, next := range lines[i+1:] {
					if v := strings.TrimSpace(next); v != "" {
						return &Match{Value: v, Matched: true}
					}
				}
				return nil
			}
			return nil
		},
	}
}

// bestEffort keeps a rule's value but reports it as unmatched
func bestEffort(r Rule) Rule {
	return Rule{
		Name: r.Name,
		Apply: func(text string) *Match {
			m := r.Apply(text)
			if m == nil {
				return nil
			}
			return &Match{Value: m.Value}
		},
	}
}

// firstLineRule is the positional vendor fallback: the first non-empty line of the text
var firstLineRule = Rule{
	Name: "first_line",
	Apply: func(text string) *Match {
		for _, line := range strings.Split(text, "\n") {
			if v := strings.TrimSpace(line); v != "" {
				return &Match{Value: v}
			}
		}
		return nil
	},
}

// DefaultRules returns the ordered rule list per field. The first rule that returns a Match wins.
func DefaultRules() map[Field][]Rule {
	dayMonthYear := `(\d{1,2}(?:st|nd|rd|th)?[ \t\-/.]*[A-Za-z]{3,9}\.?[ \t\-/.,]*\d{2,4})`
	monthDayYear := `([A-Za-z]{3,9}\.?[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4})`
	numeric := `(\d{1,4}[\-/.]\d{1,2}[\-/.]\d{1,4})`

	return map[Field][]Rule{
		FieldInvoiceNumber: {
			labelRule("invoice_no", `(?im)invoice[ \t]*(?:no\b\.?|number\b|num\b|#)[ \t]*[:#.\-]?[ \t]*([A-Z0-9][A-Z0-9\-/]*)`),
			labelRule("inv_no", `(?im)\binv[ \t]*(?:no\b\.?|#)[ \t]*[:#.\-]?[ \t]*([A-Z0-9][A-Z0-9\-/]*)`),
			labelRule("bill_no", `(?im)\bbill[ \t]*(?:no\b\.?|number\b|#)[ \t]*[:#.\-]?[ \t]*([A-Z0-9][A-Z0-9\-/]*)`),
		},
		FieldVendor: {
			labeledLineRule("vendor_name", `vendor[ \t]*name`),
			labeledLineRule("vendor", `\b(?:vendor|supplier|sold[ \t]*by|billed[ \t]*by)\b`),
		},
		FieldDate: {
			dateRule("invoice_date_dmy", `(?im)invoice[ \t]*date[ \t]*[:\-]?[ \t]*`+dayMonthYear),
			dateRule("invoice_date_mdy", `(?im)invoice[ \t]*date[ \t]*[:\-]?[ \t]*`+monthDayYear),
			dateRule("invoice_date_numeric", `(?im)invoice[ \t]*date[ \t]*[:\-]?[ \t]*`+numeric),
			dateRule("date_dmy", `(?im)\bdate[ \t]*[:\-]?[ \t]*`+dayMonthYear),
			dateRule("date_numeric", `(?im)\bdate[ \t]*[:\-]?[ \t]*`+numeric),
			bestEffort(labelRule("invoice_date_raw", `(?im)invoice[ \t]*date[ \t]*[:\-]?[ \t]*(\S.*?)[ \t]*$`)),
		},
		FieldSubtotal: {
			amountRule("subtotal", `sub[ \t]*-?[ \t]*total(?:[ \t]*amount)?`),
			amountRule("taxable_value", `taxable[ \t]*(?:value|amount)`),
		},
		FieldTaxAmount: {
			amountRule("gst", `\b(?:gst|igst|tax)\b(?:[ \t]*amount)?[ \t]*(?:\([ \t]*\d+(?:\.\d+)?[ \t]*%[ \t]*\)|@?[ \t]*\d+(?:\.\d+)?[ \t]*%)?`),
			amountRule("total_tax", `total[ \t]*(?:gst|tax)`),
		},
		FieldTotalAmount: {
			amountRule("total_amount", `(?:grand[ \t]*total|total[ \t]*amount|amount[ \t]*due|total[ \t]*payable|net[ \t]*payable)`),
			amountRule("total", `^[ \t]*total`),
		},
	}
}

// categoryKeywords is scanned in order over the whole text; first hit wins
var categoryKeywords = []struct {
	keyword  string
	category Category
}{
	{"software", CategorySoftware},
	{"subscription", CategorySoftware},
	{"maintenance", CategoryMaintenance},
	{"repair", CategoryMaintenance},
	{"travel", CategoryTravel},
	{"flight", CategoryTravel},
	{"hotel", CategoryTravel},
}

// Categorize assigns a category by the first keyword found anywhere in the text
func Categorize(text string) (Category, bool) {
	lower := strings.ToLower(text)
	for _, k := range categoryKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.category, true
		}
	}
	return CategoryOther, false
}

// Option configures an Extractor
type Option func(*Extractor)

// WithFirstLineVendor enables the positional vendor fallback.
// It is off by default because it fills vendor for any non-empty text.
func WithFirstLineVendor() Option {
	return func(e *Extractor) {
		e.rules[FieldVendor] = append(e.rules[FieldVendor], firstLineRule)
	}
}

// WithRules replaces the rule list of one field
func WithRules(field Field, rules ...Rule) Option {
	return func(e *Extractor) {
		e.rules[field] = rules
	}
}

// Extractor turns recognized text into a Candidate
type Extractor struct {
	rules map[Field][]Rule
}

// NewExtractor creates an Extractor with the default rules
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{rules: DefaultRules()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs the rules of one field in priority order and returns the first match
func (e *Extractor) Apply(field Field, text string) (Match, string, bool) {
	for _, rule := range e.rules[field] {
		if m := rule.Apply(text); m != nil {
			return *m, rule.Name, true
		}
	}
	return Match{}, "", false
}

// Extract parses raw text. It never fails: each missing field stays absent with low confidence.
func (e *Extractor) Extract(text, sourceFile string) Candidate {
	c := Candidate{SourceFile: sourceFile}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	str := func(field Field) (string, float64) {
		m, _, ok := e.Apply(field, text)
		if !ok {
			return "", ConfidenceLow
		}
		return m.Value, confidenceOf(m.Matched)
	}

	c.InvoiceNumber, c.Confidence.InvoiceNumber = str(FieldInvoiceNumber)
	c.Vendor, c.Confidence.Vendor = str(FieldVendor)
	c.Date, c.Confidence.Date = str(FieldDate)

	var raw string
	raw, c.Confidence.Subtotal = str(FieldSubtotal)
	c.Subtotal = ParseNullAmount(raw)
	raw, c.Confidence.TaxAmount = str(FieldTaxAmount)
	c.TaxAmount = ParseNullAmount(raw)
	raw, c.Confidence.TotalAmount = str(FieldTotalAmount)
	c.TotalAmount = ParseNullAmount(raw)

	var matched bool
	c.Category, matched = Categorize(text)
	c.Confidence.Category = confidenceOf(matched)

	return c
}

// FromStructured normalizes fields returned by a structured recognizer the same way text is
func FromStructured(f Fields, sourceFile string) Candidate {
	c := Candidate{
		InvoiceNumber: strings.TrimSpace(f.InvoiceNumber),
		Vendor:        strings.TrimSpace(f.Vendor),
		Subtotal:      ParseNullAmount(f.Subtotal),
		TaxAmount:     ParseNullAmount(f.Tax),
		TotalAmount:   ParseNullAmount(f.TotalAmount),
		SourceFile:    sourceFile,
	}

	c.Date = strings.TrimSpace(f.Date)
	dateOK := false
	if iso, ok := NormalizeDate(c.Date); ok {
		c.Date, dateOK = iso, true
	}

	var catOK bool
	c.Category, catOK = ParseCategory(f.Category)
	if !catOK {
		c.Category, catOK = Categorize(f.Category)
	}

	c.Confidence = Confidence{
		InvoiceNumber: confidenceOf(c.InvoiceNumber != ""),
		Vendor:        confidenceOf(c.Vendor != ""),
		Date:          confidenceOf(dateOK),
		Subtotal:      confidenceOf(c.Subtotal.Valid),
		TaxAmount:     confidenceOf(c.TaxAmount.Valid),
		TotalAmount:   confidenceOf(c.TotalAmount.Valid),
		Category:      confidenceOf(catOK),
	}
	return c
}
