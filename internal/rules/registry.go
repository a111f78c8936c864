package rules

// DefaultRules returns the built-in rule set in evaluation order: rules run
// grouped by category, following the order of Categories.
func DefaultRules() []Rule {
	return []Rule{
		{Code: "OBJECTIVE_DRIFT", Category: CategoryBrochureProtocol, Severity: SeverityWarning, Evaluate: ruleObjectiveDrift},
		{Code: "DOSE_INCONSISTENCY", Category: CategoryBrochureProtocol, Severity: SeverityError, Evaluate: ruleDoseInconsistency},
		{Code: "DOSE_TEXT_MISMATCH", Category: CategoryBrochureProtocol, Severity: SeverityWarning, Evaluate: ruleDoseTextMismatch},

		{Code: "PRIMARY_ENDPOINT_DRIFT", Category: CategoryProtocolSAP, Severity: SeverityCritical, Evaluate: rulePrimaryEndpointDrift},
		{Code: "ENDPOINT_MISSING_SAP", Category: CategoryProtocolSAP, Severity: SeverityError, Evaluate: ruleEndpointMissingSAP},
		{Code: "MULTIPLICITY_STRATEGY_MISSING", Category: CategoryProtocolSAP, Severity: SeverityError, Evaluate: ruleMultiplicityMissing},
		{Code: "TEST_MISMATCH", Category: CategoryProtocolSAP, Severity: SeverityError, Evaluate: ruleTestMismatch},
		{Code: "POPULATION_UNDECLARED", Category: CategoryProtocolSAP, Severity: SeverityWarning, Evaluate: rulePopulationUndeclared},

		{Code: "CONSENT_DOSE_DISCLOSURE", Category: CategoryProtocolConsent, Severity: SeverityError, Evaluate: ruleConsentDoseDisclosure},
		{Code: "CONSENT_PROCEDURE_COVERAGE", Category: CategoryProtocolConsent, Severity: SeverityWarning, Evaluate: ruleConsentProcedureCoverage},

		{Code: "REPORT_ENDPOINT_COVERAGE", Category: CategoryProtocolReport, Severity: SeverityWarning, Evaluate: ruleReportEndpointCoverage},
		{Code: "REPORT_POPULATION_MISMATCH", Category: CategoryProtocolReport, Severity: SeverityError, Evaluate: ruleReportPopulationMismatch},

		{Code: "PURPOSE_DRIFT", Category: CategoryGlobal, Severity: SeverityCritical, Evaluate: rulePurposeDrift},

		{Code: "VISIT_WINDOW_INVALID", Category: CategorySchedule, Severity: SeverityError, Evaluate: ruleVisitWindows},
	}
}
