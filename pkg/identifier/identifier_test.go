package identifier

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantScheme string
		wantValue  string
		wantErr    bool
	}{
		{
			name:       "participant",
			uri:        "iso6523-actorid-upis::0088:5798000000001",
			wantScheme: DefaultParticipantScheme,
			wantValue:  "0088:5798000000001",
		},
		{
			name:       "document type keeps inner separators",
			uri:        "busdox-docid-qns::urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##urn:cen.eu:en16931:2017::2.1",
			wantScheme: DefaultDocumentTypeScheme,
			wantValue:  "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##urn:cen.eu:en16931:2017::2.1",
		},
		{name: "no separator", uri: "0088:123", wantErr: true},
		{name: "empty scheme", uri: "::0088:123", wantErr: true},
		{name: "empty value", uri: "iso6523-actorid-upis::", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentifier) {
					t.Fatalf("Parse(%q) error = %v, want ErrInvalidIdentifier", tt.uri, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.uri, err)
			}
			if id.Scheme != tt.wantScheme || id.Value != tt.wantValue {
				t.Errorf("Parse(%q) = %+v, want %s / %s", tt.uri, id, tt.wantScheme, tt.wantValue)
			}
		})
	}
}

func TestParseWithDefault(t *testing.T) {
	id, err := ParseWithDefault("9915:TEST", Participant)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Scheme != DefaultParticipantScheme {
		t.Errorf("Scheme = %s, want %s", id.Scheme, DefaultParticipantScheme)
	}
	if id.Value != "9915:test" {
		t.Errorf("Value = %s, want lower-cased 9915:test", id.Value)
	}

	id, err = ParseWithDefault("custom-scheme::abc", Process)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Scheme != "custom-scheme" {
		t.Errorf("Scheme = %s, want custom-scheme", id.Scheme)
	}

	docType := "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##urn:cen.eu:en16931:2017::2.1"
	id, err = ParseWithDefault(docType, DocumentType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Scheme != DefaultDocumentTypeScheme || id.Value != docType {
		t.Errorf("got %s::%s, want default scheme with the full value", id.Scheme, id.Value)
	}

	id, err = ParseWithDefault(DefaultDocumentTypeScheme+"::"+docType, DocumentType)
	if err != nil || id.Value != docType {
		t.Errorf("explicit scheme: got %v, %v", id, err)
	}

	if _, err := ParseWithDefault("::abc", Process); err == nil {
		t.Error("expected error for empty scheme")
	}

	if _, err := ParseWithDefault("  ", DocumentType); err == nil {
		t.Error("expected error for blank identifier")
	}
}

func TestHasDefaultScheme(t *testing.T) {
	if !NewParticipant("0088:1").HasDefaultScheme(Participant) {
		t.Error("participant with default scheme not recognized")
	}
	if New("other", "0088:1").HasDefaultScheme(Participant) {
		t.Error("non-default participant scheme reported as default")
	}
	if !New(WildcardDocumentTypeScheme, "urn:x").HasDefaultScheme(DocumentType) {
		t.Error("wildcard document type scheme should be accepted")
	}
	if NewDocumentType("urn:x").HasDefaultScheme(Process) {
		t.Error("document type scheme is not a process scheme")
	}
}

func TestEqual(t *testing.T) {
	a := New(DefaultParticipantScheme, "0088:ABC")
	b := New(DefaultParticipantScheme, "0088:abc")
	if !a.Equal(b, Participant) {
		t.Error("participant identifiers should compare case-insensitively")
	}
	if a.Equal(b, DocumentType) {
		t.Error("document type identifiers should compare case-sensitively")
	}
}

func TestParticipantParts(t *testing.T) {
	icd, local, err := ParticipantParts("0088:5798000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if icd != "0088" || local != "5798000000001" {
		t.Errorf("got %s / %s", icd, local)
	}
	if _, _, err := ParticipantParts("nocolon"); err == nil {
		t.Error("expected error")
	}
}

func TestStringEmpty(t *testing.T) {
	var id ID
	if id.String() != "" {
		t.Errorf("String() of empty ID = %q", id.String())
	}
	if !id.IsEmpty() {
		t.Error("zero ID should be empty")
	}
}
