// Package transcript cleans raw call transcripts and pulls heuristic hints
// out of them. Hints are advisory and never override extracted fields.
package transcript

import (
	"regexp"
	"strconv"
	"strings"

	"collection-qa-go/internal/types"
)

var (
	timestampRe = regexp.MustCompile(`\[\d{2}:\d{2}\.\d{3}\s*-->\s*\d{2}:\d{2}\.\d{3}\]`)
	agentRe     = regexp.MustCompile(`(?i)saya\s+(\w+)\s+dari\s+BFI`)
	customerRe  = regexp.MustCompile(`(?:Bapak|Ibu)\s+(\w+)`)
	amountRes   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Rp\.?\s*(\d{1,3}(?:\.\d{3})*(?:,\d{2})?)`),
		regexp.MustCompile(`(?i)(\d{1,3}(?:\.\d{3})*(?:,\d{2})?)\s*rupiah`),
	}
	dateRes = []struct {
		re   *regexp.Regexp
		kind string
	}{
		{regexp.MustCompile(`(?i)tanggal\s+(\d{1,2})`), "specific_date"},
		{regexp.MustCompile(`(?i)besok`), "tomorrow"},
		{regexp.MustCompile(`(?i)hari\s+ini`), "today"},
		{regexp.MustCompile(`(?i)minggu\s+depan`), "next_week"},
	}
)

// characters of surrounding text kept as context
const contextWindow = 50

// Clean strips [mm:ss.mmm --> mm:ss.mmm] markers and collapses whitespace.
func Clean(text string) string {
	text = timestampRe.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

type Metadata struct {
	AgentName    string `json:"agent_name,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
}

func ExtractMetadata(text string) Metadata {
	var m Metadata
	if g := agentRe.FindStringSubmatch(text); g != nil {
		m.AgentName = g[1]
	}
	if g := customerRe.FindStringSubmatch(text); g != nil {
		m.CustomerName = g[1]
	}
	return m
}

type AmountMention struct {
	types.Amount
	Context string `json:"context"`
}

// ExtractAmounts finds "Rp 1.234.567" and "1.234.567 rupiah" style amounts.
// Dots group thousands and a comma marks decimals.
func ExtractAmounts(text string) []AmountMention {
	var out []AmountMention
	for _, re := range amountRes {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			raw := text[loc[2]:loc[3]]
			v, err := strconv.ParseFloat(strings.ReplaceAll(strings.ReplaceAll(raw, ".", ""), ",", "."), 64)
			if err != nil {
				continue
			}
			out = append(out, AmountMention{
				Amount:  types.Amount{Value: v, Currency: types.DefaultCurrency},
				Context: window(text, loc[0], loc[1]),
			})
		}
	}
	return out
}

type DateMention struct {
	Match        string `json:"match"`
	Type         string `json:"type"`
	SpecificDate string `json:"specific_date,omitempty"`
	Context      string `json:"context"`
}

func ParseDateMentions(text string) []DateMention {
	var out []DateMention
	for _, d := range dateRes {
		for _, loc := range d.re.FindAllStringSubmatchIndex(text, -1) {
			dm := DateMention{
				Match:   text[loc[0]:loc[1]],
				Type:    d.kind,
				Context: window(text, loc[0], loc[1]),
			}
			if len(loc) >= 4 && loc[2] >= 0 {
				dm.SpecificDate = text[loc[2]:loc[3]]
			}
			out = append(out, dm)
		}
	}
	return out
}

// Hints bundles every heuristic for storage with an analysis.
type Hints struct {
	Metadata
	Amounts []AmountMention `json:"amounts,omitempty"`
	Dates   []DateMention   `json:"dates,omitempty"`
}

func ExtractHints(text string) Hints {
	return Hints{
		Metadata: ExtractMetadata(text),
		Amounts:  ExtractAmounts(text),
		Dates:    ParseDateMentions(text),
	}
}

func window(text string, start, end int) string {
	lo := max(0, start-contextWindow)
	hi := min(len(text), end+contextWindow)
	return strings.TrimSpace(strings.ToValidUTF8(text[lo:hi], ""))
}
