package masker

import "regexp"

// rule is one lexical detector. Matches of the same rule never overlap;
// matches of different rules may and are reconciled in merge.
type rule struct {
	classification string
	re             *regexp.Regexp
}

// rules is evaluated in order and the index doubles as candidate priority.
// Numeric rules are anchored with \b on both sides so a 12-digit run never
// matches inside a 16-digit one. Longer digit runs are listed first so that
// a card number wins any tie against the narrower rules.
var rules = []rule{
	{ClassCreditDebit, regexp.MustCompile(`\b\d{16}\b`)},
	{ClassAadhar, regexp.MustCompile(`\b\d{12}\b`)},
	{ClassCVV, regexp.MustCompile(`\b\d{3}\b`)},
	{ClassDOB, regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|\d{2}[/-]\d{2}[/-]\d{4})\b`)},
	{ClassExpiry, regexp.MustCompile(`\b(?:0[1-9]|1[0-2])/\d{2}\b`)},
	{ClassPhone, regexp.MustCompile(`\b\d{10}\b`)},
	{ClassEmail, regexp.MustCompile(`[a-zA-Z0-9_.+\-]+@[a-zA-Z0-9\-]+\.[a-zA-Z0-9.\-]+`)},
	{ClassFullName, regexp.MustCompile(`\b[A-Z][a-z]*\s[A-Z][a-z]*\b`)},
}

// detectPatterns runs every rule over text and returns candidates grouped by
// rule, in rule order, each group in match order.
func detectPatterns(text string) []Candidate {
	var out []Candidate
	for i, r := range rules {
		ph := placeholders[r.classification]
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			out = append(out, Candidate{
				Span:           Span{Start: loc[0], End: loc[1]},
				Classification: r.classification,
				Placeholder:    ph,
				Priority:       i,
			})
		}
	}
	return out
}
