package extractor

import (
	"fmt"
	"strings"

	"collection-qa-go/internal/types"
)

const callDataTemplate = `{
  "basic_info": {
    "agent_name": "string or null",
    "customer_name": "string or null",
    "scenario_type": "PTP|REFUSE_TO_PAY|TPC|UNKNOWN",
    "classification_reason": "why this scenario was chosen",
    "call_duration": "string or null",
    "amounts_mentioned": [{"value": 0, "currency": "IDR", "type": "string"}],
    "payment_date_mentioned": "string or null"
  },
  "ptp_details": {
    "promised_date": "string or null",
    "promised_amount": {"value": 0, "currency": "IDR", "type": "string"},
    "negotiation_attempts": 0,
    "commitment_strength": "strong|medium|weak",
    "commitment_phrases": ["exact quotes"]
  },
  "refuse_details": {
    "reason": "string or null",
    "customer_situation": "string or null",
    "refusal_type": "explicit|implicit",
    "solutions_discussed": ["list"]
  },
  "tpc_details": {
    "relationship_to_customer": "string or null",
    "message_delivered": true,
    "verification_attempt": false,
    "alternative_contacts": ["list"]
  },
  "call_summary": "short summary"
}`

const qaScoreTemplate = `{
  "scenario_type": "the classified scenario",
  "opening_score": {
    "greeting_score": "0|0.5|1",
    "greeting_evidence": "exact quote from transcript",
    "customer_name_verification": "COMPLIANT|NON_COMPLIANT|NOT_APPLICABLE",
    "customer_verification_evidence": "exact quote or null",
    "mandatory_info_disclosed": ["list of disclosed items"]
  },
  "communication_score": {
    "voice_tone_score": "0|0.5|1",
    "voice_tone_evidence": "evidence or null",
    "speaking_pace_score": "0|0.5|1",
    "speaking_pace_evidence": "evidence or null",
    "language_etiquette_score": "0|0.5|1",
    "language_evidence": ["examples"]
  },
  "negotiation_score": {
    "negotiation_attempts": 0,
    "solutions_offered": ["list of solutions"],
    "payment_commitment_obtained": false,
    "negotiation_evidence": ["key phrases"]
  },
  "knockout_violations": {
    "unauthorized_disclosure": false,
    "disclosure_evidence": "evidence or null",
    "ptp_cheating": false,
    "ptp_cheating_evidence": "evidence or null",
    "other_violations": ["list of violations"]
  },
  "score_breakdown": {"opening": 0, "communication": 0, "negotiation": 0},
  "improvement_areas": ["list of areas"],
  "evidence_highlights": ["list of key evidence"]
}`

// ClassificationInstructions describes the scenario taxonomy for Indonesian
// collection calls.
func ClassificationInstructions() string {
	return `You analyse Indonesian debt-collection call transcripts. Classify the call into exactly one scenario and extract the facts that support it.

PTP (promise to pay): the customer, not the agent, names a specific payment date.
  e.g. "Iya, saya bayar tanggal 8", "Besok saya bayar", "Insya Allah tanggal 27"
TPC (third party contact): the person on the line is neither the customer nor the spouse. Track relationship and message delivery.
  e.g. "Saya adiknya", "Beliau sedang tidak ada", "Nanti saya sampaikan"
REFUSE_TO_PAY: the customer is reached but gives no payment date, or says they cannot or will not pay.
  e.g. "Belum ada uang", "Saya tidak sanggup bayar", "Mau dikembalikan unitnya"
UNKNOWN: none of the above can be established.

Fill only the detail block that matches the scenario and set the other two to null. Always give a classification_reason unless the scenario is UNKNOWN. Record every amount and date mentioned. Do not invent names or numbers.`
}

var scenarioAddenda = map[types.ScenarioType]string{
	types.ScenarioPTP: `Additional PTP criteria:
- commitment clarity
- payment amount and date verified
- commitment confirmed back to the customer
- follow-up scheduled`,
	types.ScenarioRefuseToPay: `Additional REFUSE_TO_PAY criteria:
- reason for refusal documented
- solutions explored
- escalation handled
- professional persistence`,
	types.ScenarioTPC: `Additional TPC criteria:
- relationship to the customer confirmed
- debt information protected from the third party
- message is clear
- alternative contact information gathered`,
}

// QAInstructions is the scoring rubric plus the addendum for scenario.
func QAInstructions(scenario types.ScenarioType) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a QA analyst for a collection call centre. The call is already classified as %s. Score the agent strictly against the rubric and quote the transcript as evidence.

Opening (6%%): greeting with agent and company name, customer name verification, mandatory disclosures. Greeting is 0 (non-compliant), 0.5 (standard) or 1 (strong).
Communication (25%%): voice tone, speaking pace and language etiquette, each 0, 0.5 or 1.
Negotiation (40%%, PTP and REFUSE_TO_PAY only): count negotiation attempts, list solutions offered, say whether a payment commitment was obtained. Set negotiation_score to null for other scenarios.
Knockouts (immediate fail): disclosure of debt information to an unauthorised party, PTP cheating, any other policy violation. Flag only with specific evidence.

Use only the values 0, 0.5 and 1 for scores.`, scenario)
	if add, ok := scenarioAddenda[scenario]; ok {
		b.WriteString("\n\n")
		b.WriteString(add)
	}
	return b.String()
}

// Template returns the JSON skeleton the model must fill for s.
func (s Schema) Template() string {
	switch s {
	case SchemaCallData:
		return callDataTemplate
	case SchemaQAScore:
		return qaScoreTemplate
	}
	return "{}"
}

// BuildPrompt assembles the single user prompt sent to chat-style models.
func BuildPrompt(text string, schema Schema, instructions string) string {
	return fmt.Sprintf(`%s

----------------------------------------------------------------------
OUTPUT SCHEMA (%s, STRICT: RETURN ONLY JSON)
%s
----------------------------------------------------------------------

TRANSCRIPT:
%s

----------------------------------------------------------------------
Return ONLY valid JSON matching the schema above. No commentary, no backticks.
`, instructions, schema, schema.Template(), text)
}
