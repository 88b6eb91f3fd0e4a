package usage

import "fmt"

// Pricing holds the dollar cost per million tokens for the selected model.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Totals is a read-only snapshot of accumulated spend.
type Totals struct {
	PromptTokens     int
	CompletionTokens int
	LLMCost          float64
	ServiceCost      float64
}

// TotalCost returns combined model and external-service spend in dollars.
func (t Totals) TotalCost() float64 {
	return t.LLMCost + t.ServiceCost
}

func (t Totals) String() string {
	return fmt.Sprintf("tokens in=%d out=%d, llm=$%.4f, services=$%.4f, total=$%.4f",
		t.PromptTokens, t.CompletionTokens, t.LLMCost, t.ServiceCost, t.TotalCost())
}

// Tracker accumulates token counts and dollar cost for one run. Counters only
// grow and are never reset mid-run. The pipeline is single-threaded, so no
// synchronization is needed; the tracker is passed explicitly into every stage
// rather than living in package state.
type Tracker struct {
	pricing Pricing
	totals  Totals
}

// NewTracker returns a tracker priced for the configured model.
func NewTracker(p Pricing) *Tracker {
	return &Tracker{pricing: p}
}

// AddGeneration records one model call's token usage and its derived cost.
// Negative counts are ignored so the accumulator stays monotonic.
func (t *Tracker) AddGeneration(promptTokens, completionTokens int) {
	if promptTokens > 0 {
		t.totals.PromptTokens += promptTokens
		t.totals.LLMCost += float64(promptTokens) / 1e6 * t.pricing.InputPerMTok
	}
	if completionTokens > 0 {
		t.totals.CompletionTokens += completionTokens
		t.totals.LLMCost += float64(completionTokens) / 1e6 * t.pricing.OutputPerMTok
	}
}

// AddServiceCost records dollars spent on an external search or crawl call.
func (t *Tracker) AddServiceCost(dollars float64) {
	if dollars > 0 {
		t.totals.ServiceCost += dollars
	}
}

// Totals returns the current snapshot.
func (t *Tracker) Totals() Totals { return t.totals }
