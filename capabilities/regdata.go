package capabilities

import (
	"context"
	"fmt"
	"strings"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// frameworkEntry is one regulatory framework with its headline obligations.
type frameworkEntry struct {
	Framework    string
	Requirements []string
}

// regulatoryData is a static snapshot keyed by jurisdiction code, then
// task category. It is a research aid, not legal advice.
var regulatoryData = map[string]map[string][]frameworkEntry{
	"us": {
		"data-privacy": {
			{Framework: "CCPA/CPRA", Requirements: []string{
				"Consumer rights to access, delete, and opt out of sale of personal information",
				"Privacy policy disclosures updated at least every 12 months",
				"Respond to verified consumer requests within 45 days",
			}},
			{Framework: "State breach notification laws", Requirements: []string{
				"Notify affected residents without unreasonable delay after discovery of a breach",
				"Notify state attorneys general above state-specific thresholds",
			}},
			{Framework: "FTC Act Section 5", Requirements: []string{
				"Privacy and security practices must match public representations",
			}},
		},
		"financial": {
			{Framework: "SOX", Requirements: []string{
				"Section 302 officer certification of financial reports",
				"Section 404 internal control over financial reporting assessment",
				"Audit workpaper retention for 7 years",
			}},
			{Framework: "GLBA Safeguards Rule", Requirements: []string{
				"Written information security program with designated qualified individual",
				"Risk assessment and access controls over customer financial data",
			}},
		},
		"health": {
			{Framework: "HIPAA Privacy Rule", Requirements: []string{
				"Limit PHI use and disclosure to the minimum necessary",
				"Business associate agreements before sharing PHI with vendors",
			}},
			{Framework: "HIPAA Security Rule", Requirements: []string{
				"Administrative, physical, and technical safeguards for ePHI",
				"Periodic risk analysis and workforce security training",
			}},
			{Framework: "HITECH", Requirements: []string{
				"Breach notification to individuals within 60 days of discovery",
				"Notify HHS immediately for breaches affecting 500+ individuals",
			}},
		},
		"aml": {
			{Framework: "Bank Secrecy Act", Requirements: []string{
				"File SARs within 30 days of detecting suspicious activity",
				"CTRs for cash transactions over $10,000",
			}},
			{Framework: "FinCEN CDD Rule", Requirements: []string{
				"Identify and verify beneficial owners of legal entity customers",
				"Ongoing monitoring and customer risk profiles",
			}},
			{Framework: "OFAC sanctions", Requirements: []string{
				"Screen counterparties against SDN and sanctioned-country lists",
			}},
		},
		"general": {
			{Framework: "FTC Act Section 5", Requirements: []string{
				"No unfair or deceptive acts or practices in or affecting commerce",
			}},
		},
	},
	"eu": {
		"data-privacy": {
			{Framework: "GDPR", Requirements: []string{
				"Lawful basis required for each processing activity",
				"Notify supervisory authority of personal data breaches within 72 hours",
				"Data protection impact assessment for high-risk processing",
				"Records of processing activities under Article 30",
			}},
			{Framework: "ePrivacy Directive", Requirements: []string{
				"Prior consent for non-essential cookies and trackers",
			}},
		},
		"financial": {
			{Framework: "MiFID II", Requirements: []string{
				"Transaction reporting and best-execution evidence",
				"Recording of communications that may result in transactions",
			}},
			{Framework: "DORA", Requirements: []string{
				"ICT risk management framework and incident classification",
				"Report major ICT incidents to the competent authority",
			}},
			{Framework: "PSD2", Requirements: []string{
				"Strong customer authentication for electronic payments",
			}},
		},
		"health": {
			{Framework: "GDPR Article 9", Requirements: []string{
				"Explicit consent or another Article 9 condition before processing health data",
			}},
		},
		"aml": {
			{Framework: "AMLD6", Requirements: []string{
				"Customer due diligence and beneficial ownership registers",
				"Report suspicious transactions to the national FIU",
			}},
			{Framework: "EU sanctions regime", Requirements: []string{
				"Screen against EU consolidated sanctions list",
			}},
		},
		"general": {
			{Framework: "GDPR Article 3", Requirements: []string{
				"Territorial scope covers offering goods or services to EU data subjects",
			}},
		},
	},
	"uk": {
		"data-privacy": {
			{Framework: "UK GDPR / DPA 2018", Requirements: []string{
				"Notify the ICO of reportable breaches within 72 hours",
				"Appoint a UK representative when outside the UK and in scope",
			}},
		},
		"financial": {
			{Framework: "FCA SYSC / SM&CR", Requirements: []string{
				"Allocate senior management responsibility for compliance",
				"Maintain adequate risk management systems and controls",
			}},
		},
		"aml": {
			{Framework: "MLR 2017 / POCA 2002", Requirements: []string{
				"Risk-based customer due diligence and enhanced checks for PEPs",
				"Submit SARs to the NCA for suspected money laundering",
			}},
		},
	},
	"ca": {
		"data-privacy": {
			{Framework: "PIPEDA", Requirements: []string{
				"Report breaches of security safeguards posing real risk of significant harm",
				"Maintain breach records for 24 months",
			}},
			{Framework: "Quebec Law 25", Requirements: []string{
				"Privacy impact assessments for projects involving personal information",
				"Designate a person in charge of the protection of personal information",
			}},
		},
		"aml": {
			{Framework: "PCMLTFA", Requirements: []string{
				"Register with FINTRAC and report suspicious and large cash transactions",
			}},
		},
	},
	"au": {
		"data-privacy": {
			{Framework: "Privacy Act 1988", Requirements: []string{
				"Comply with the Australian Privacy Principles",
				"Assess suspected eligible data breaches within 30 days",
				"Notify OAIC and affected individuals of eligible data breaches",
			}},
		},
		"financial": {
			{Framework: "APRA CPS 234", Requirements: []string{
				"Maintain information security capability commensurate with threats",
				"Notify APRA of material information security incidents within 72 hours",
			}},
		},
	},
}

var jurisdictionAliases = map[string]string{
	"us": "us", "usa": "us", "u.s.": "us", "united states": "us",
	"california": "us", "new york": "us", "texas": "us",
	"eu": "eu", "europe": "eu", "european union": "eu",
	"germany": "eu", "france": "eu", "ireland": "eu", "netherlands": "eu",
	"uk": "uk", "united kingdom": "uk", "great britain": "uk", "england": "uk",
	"ca": "ca", "canada": "ca", "quebec": "ca",
	"au": "au", "australia": "au",
}

var categoryAliases = map[string]string{
	"data-privacy": "data-privacy", "privacy": "data-privacy",
	"data protection": "data-privacy", "gdpr": "data-privacy",
	"financial": "financial", "finance": "financial",
	"financial-reporting": "financial", "sox": "financial",
	"health": "health", "healthcare": "health", "hipaa": "health",
	"aml": "aml", "anti-money laundering": "aml", "kyc": "aml", "sanctions": "aml",
	"general": "general",
}

func normalizeJurisdiction(raw string) (string, bool) {
	code, ok := jurisdictionAliases[strings.ToLower(strings.TrimSpace(raw))]
	return code, ok
}

func normalizeCategory(raw string) string {
	if cat, ok := categoryAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return cat
	}
	return "general"
}

// RegulatoryLookup answers which frameworks and headline requirements
// apply to a jurisdiction and task category, from the compiled-in
// snapshot above.
type RegulatoryLookup struct{}

// NewRegulatoryLookup creates the lookup module.
func NewRegulatoryLookup() *RegulatoryLookup { return &RegulatoryLookup{} }

func (c *RegulatoryLookup) Name() string { return "regulatory-lookup" }

func (c *RegulatoryLookup) Metadata() core.CapabilityMetadata {
	return core.CapabilityMetadata{
		Name:        "regulatory-lookup",
		Description: "Looks up regulatory frameworks and key requirements by jurisdiction and task category",
		Tags:        []string{"regulatory-lookup", "research"},
		SideEffect:  core.SideEffectReadOnly,
		Parameters: []core.CapabilityParameter{
			{Name: "jurisdiction", Type: "string", Description: "Jurisdiction code or name, overrides the entity's jurisdictions"},
			{Name: "category", Type: "string", Description: "Task category, overrides the task's category",
				Enum: []string{"data-privacy", "financial", "health", "aml", "general"}},
		},
	}
}

// Invoke resolves jurisdictions from params or the entity context and
// returns every matching framework. A lookup that finds nothing is still
// a success; the empty result is itself evidence.
func (c *RegulatoryLookup) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	jurisdictions := stringSliceParam(req.Params, "jurisdiction")
	if len(jurisdictions) == 0 {
		jurisdictions = req.Entity.Jurisdictions
	}
	category := stringParam(req.Params, "category")
	if category == "" {
		category = req.Task.Category
	}
	normCategory := normalizeCategory(category)

	var entries []map[string]interface{}
	var names []string
	var unknown []string
	for _, raw := range jurisdictions {
		code, ok := normalizeJurisdiction(raw)
		if !ok {
			unknown = append(unknown, raw)
			continue
		}
		for _, fw := range regulatoryData[code][normCategory] {
			entries = append(entries, map[string]interface{}{
				"jurisdiction": code,
				"framework":    fw.Framework,
				"requirements": fw.Requirements,
			})
			names = append(names, fw.Framework)
		}
	}

	outputs := map[string]interface{}{
		"category":   normCategory,
		"frameworks": entries,
	}
	if len(unknown) > 0 {
		outputs["unknown_jurisdictions"] = unknown
	}

	var summary string
	switch {
	case len(jurisdictions) == 0:
		summary = "No jurisdictions provided; nothing to look up."
	case len(entries) == 0:
		summary = fmt.Sprintf("No regulatory entries found for category %q in jurisdictions %s.",
			normCategory, strings.Join(jurisdictions, ", "))
	default:
		summary = fmt.Sprintf("Found %d framework(s) for category %q: %s.",
			len(entries), normCategory, strings.Join(names, ", "))
	}
	if len(unknown) > 0 {
		summary += fmt.Sprintf(" Unrecognized jurisdictions: %s.", strings.Join(unknown, ", "))
	}

	return &core.CapabilityResult{
		Capability: c.Name(),
		Success:    true,
		Outputs:    outputs,
		Summary:    summary,
	}, nil
}
