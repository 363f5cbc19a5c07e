package extractor

import (
	"context"
	"fmt"
	"sync"
)

const mockCallData = `{
  "basic_info": {
    "agent_name": "Rina",
    "customer_name": "Budi",
    "scenario_type": "PTP",
    "classification_reason": "Customer states they will pay on the 8th",
    "call_duration": null,
    "amounts_mentioned": [{"value": 1250000, "currency": "IDR", "type": "installment"}],
    "payment_date_mentioned": "tanggal 8"
  },
  "ptp_details": {
    "promised_date": "tanggal 8",
    "promised_amount": {"value": 1250000, "currency": "IDR", "type": "installment"},
    "negotiation_attempts": 2,
    "commitment_strength": "strong",
    "commitment_phrases": ["Iya, saya bayar tanggal 8"]
  },
  "refuse_details": null,
  "tpc_details": null,
  "call_summary": "Customer acknowledged the overdue installment and promised to pay on the 8th."
}`

const mockQAScore = `{
  "opening_score": {
    "greeting_score": "1",
    "greeting_evidence": "Selamat pagi, saya Rina dari BFI Finance",
    "customer_name_verification": "COMPLIANT",
    "customer_verification_evidence": "Dengan Bapak Budi?",
    "mandatory_info_disclosed": ["agent name", "company name"]
  },
  "communication_score": {
    "voice_tone_score": "1",
    "voice_tone_evidence": "calm and polite",
    "speaking_pace_score": "0.5",
    "speaking_pace_evidence": "slightly fast",
    "language_etiquette_score": "1",
    "language_evidence": ["mohon maaf mengganggu"]
  },
  "negotiation_score": {
    "negotiation_attempts": 2,
    "solutions_offered": ["pay on the 8th"],
    "payment_commitment_obtained": true,
    "negotiation_evidence": ["Iya, saya bayar tanggal 8"]
  },
  "knockout_violations": {
    "unauthorized_disclosure": false,
    "disclosure_evidence": null,
    "ptp_cheating": false,
    "ptp_cheating_evidence": null,
    "other_violations": []
  },
  "score_breakdown": {"opening": 0.06, "communication": 0.21, "negotiation": 0.21},
  "improvement_areas": ["confirm the exact amount back to the customer"],
  "evidence_highlights": ["Iya, saya bayar tanggal 8"]
}`

// Mock returns fixed instances. Responses overrides the defaults per schema.
type Mock struct {
	Responses map[Schema][]byte
	Err       error

	mu    sync.Mutex
	calls []Schema
}

func NewMock() *Mock {
	return &Mock{Responses: map[Schema][]byte{
		SchemaCallData: []byte(mockCallData),
		SchemaQAScore:  []byte(mockQAScore),
	}}
}

func (m *Mock) Extract(ctx context.Context, _ string, schema Schema, _ string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, schema)
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	out, ok := m.Responses[schema]
	if !ok {
		return nil, fmt.Errorf("mock: no response for schema %s", schema)
	}
	return out, nil
}

// Calls lists the schemas requested so far.
func (m *Mock) Calls() []Schema {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Schema(nil), m.calls...)
}
