package validation

// Built-in rule set identifiers
const (
	RuleSetBIS3Invoice    = "eu.peppol.bis3:invoice:basic"
	RuleSetBIS3CreditNote = "eu.peppol.bis3:creditnote:basic"
)

const (
	bis3CustomizationPattern = `^urn:cen\.eu:en16931:2017(#compliant#|#conformant#)?.*$`
	bis3ProfileID            = `^urn:fdc:peppol\.eu:2017:poacc:billing:01:1\.0$`
	isoDatePattern           = `^\d{4}-\d{2}-\d{2}$`
	currencyPattern          = `^[A-Z]{3}$`
)

type builtinRuleSet struct {
	id    string
	name  string
	rules []Rule
}

func commonBIS3Rules(prefix string) []Rule {
	return []Rule{
		{ID: prefix + "-R001", Severity: SeverityError, Require: "./CustomizationID", Pattern: bis3CustomizationPattern,
			Message: "Specification identifier MUST start with urn:cen.eu:en16931:2017"},
		{ID: prefix + "-R002", Severity: SeverityError, Require: "./ProfileID", Pattern: bis3ProfileID,
			Message: "Business process MUST be urn:fdc:peppol.eu:2017:poacc:billing:01:1.0"},
		{ID: prefix + "-R003", Severity: SeverityError, Require: "./ID", NotEmpty: true,
			Message: "A document MUST have a document number"},
		{ID: prefix + "-R004", Severity: SeverityError, Require: "./IssueDate", Pattern: isoDatePattern,
			Message: "Issue date MUST be formatted YYYY-MM-DD"},
		{ID: prefix + "-R005", Severity: SeverityError, Require: "./DocumentCurrencyCode", Pattern: currencyPattern,
			Message: "Document currency code MUST be an ISO 4217 code"},
		{ID: prefix + "-R006", Severity: SeverityError, Require: "./AccountingSupplierParty/Party/EndpointID", NotEmpty: true,
			Message: "Seller electronic address MUST be provided"},
		{ID: prefix + "-R007", Severity: SeverityError, Require: "./AccountingCustomerParty/Party/EndpointID", NotEmpty: true,
			Message: "Buyer electronic address MUST be provided"},
		{ID: prefix + "-R008", Severity: SeverityError, Context: "./AccountingSupplierParty/Party/EndpointID", Require: ".[@schemeID]",
			Message: "Electronic address MUST have a scheme identifier"},
		{ID: prefix + "-R009", Severity: SeverityError, Require: "./LegalMonetaryTotal/PayableAmount", NotEmpty: true,
			Message: "Amount due for payment MUST be provided"},
		{ID: prefix + "-R010", Severity: SeverityWarning, Require: "./BuyerReference",
			Message: "Buyer reference or purchase order reference should be provided"},
	}
}

func builtinRuleSets() []builtinRuleSet {
	invoice := append(commonBIS3Rules("PEPPOL-INV"),
		Rule{ID: "PEPPOL-INV-R011", Severity: SeverityError, Require: "./InvoiceTypeCode", NotEmpty: true,
			Message: "Invoice type code MUST be provided"},
		Rule{ID: "PEPPOL-INV-R012", Severity: SeverityError, Require: "./InvoiceLine",
			Message: "An invoice MUST have at least one invoice line"},
	)
	creditNote := append(commonBIS3Rules("PEPPOL-CN"),
		Rule{ID: "PEPPOL-CN-R011", Severity: SeverityError, Require: "./CreditNoteTypeCode", NotEmpty: true,
			Message: "Credit note type code MUST be provided"},
		Rule{ID: "PEPPOL-CN-R012", Severity: SeverityError, Require: "./CreditNoteLine",
			Message: "A credit note MUST have at least one credit note line"},
	)

	return []builtinRuleSet{
		{id: RuleSetBIS3Invoice, name: "PEPPOL BIS Billing 3.0 Invoice (structural)", rules: invoice},
		{id: RuleSetBIS3CreditNote, name: "PEPPOL BIS Billing 3.0 Credit Note (structural)", rules: creditNote},
	}
}
