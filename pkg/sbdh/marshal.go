package sbdh

import (
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
)

// Namespaces controls how the SBDH namespace is declared on output.
// The zero value binds it as the default namespace, so the root element is
// written as an unprefixed StandardBusinessDocument.
type Namespaces struct {
	// Prefix binds the SBDH namespace to a prefix instead
	Prefix string
}

func (ns Namespaces) tag(local string) string {
	if ns.Prefix == "" {
		return local
	}
	return ns.Prefix + ":" + local
}

// Document builds the etree document for the envelope.
func (e *Envelope) Document(ns Namespaces) (*etree.Document, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("%w: no payload", ErrSerialization)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement(ns.tag("StandardBusinessDocument"))
	if ns.Prefix == "" {
		root.CreateAttr("xmlns", Namespace)
	} else {
		root.CreateAttr("xmlns:"+ns.Prefix, Namespace)
	}

	header := root.CreateElement(ns.tag("StandardBusinessDocumentHeader"))
	header.CreateElement(ns.tag("HeaderVersion")).SetText(HeaderVersion)
	addPartner(header, ns, "Sender", e.Sender)
	addPartner(header, ns, "Receiver", e.Receiver)

	docID := header.CreateElement(ns.tag("DocumentIdentification"))
	docID.CreateElement(ns.tag("Standard")).SetText(e.Standard)
	docID.CreateElement(ns.tag("TypeVersion")).SetText(e.TypeVersion)
	docID.CreateElement(ns.tag("InstanceIdentifier")).SetText(e.InstanceIdentifier)
	docID.CreateElement(ns.tag("Type")).SetText(e.Type)
	docID.CreateElement(ns.tag("CreationDateAndTime")).SetText(e.CreationTime.Format(creationTimeLayout))

	scope := header.CreateElement(ns.tag("BusinessScope"))
	addScope(scope, ns, ScopeDocumentID, e.DocumentType)
	addScope(scope, ns, ScopeProcessID, e.Process)

	root.AddChild(payloadCopy(e.Payload, ns.Prefix == ""))
	return doc, nil
}

// payloadCopy copies a payload element and declares on the copy the
// namespaces it uses that are only declared on its ancestors. With
// unbindDefault set, a payload without any default namespace gets xmlns="" so
// it stays outside the envelope's default namespace.
func payloadCopy(payload *etree.Element, unbindDefault bool) *etree.Element {
	cp := payload.Copy()
	used := make(map[string]bool)
	usedPrefixes(cp, used)

	declared := make(map[string]bool)
	for _, a := range cp.Attr {
		if prefix, ok := declaredPrefix(a); ok {
			declared[prefix] = true
		}
	}
	for anc := payload.Parent(); anc != nil; anc = anc.Parent() {
		for _, a := range anc.Attr {
			prefix, ok := declaredPrefix(a)
			if !ok || declared[prefix] || !used[prefix] {
				continue
			}
			declared[prefix] = true
			cp.CreateAttr(a.FullKey(), a.Value)
		}
	}
	if unbindDefault && used[""] && !declared[""] {
		cp.CreateAttr("xmlns", "")
	}
	return cp
}

// usedPrefixes records the namespace prefixes of el and its descendants;
// "" stands for the default namespace
func usedPrefixes(el *etree.Element, used map[string]bool) {
	used[el.Space] = true
	for _, a := range el.Attr {
		if a.Space != "" && a.Space != "xmlns" && a.Space != "xml" {
			used[a.Space] = true
		}
	}
	for _, child := range el.ChildElements() {
		usedPrefixes(child, used)
	}
}

// declaredPrefix returns the prefix bound by a namespace declaration, "" for
// xmlns
func declaredPrefix(a etree.Attr) (string, bool) {
	switch {
	case a.Space == "" && a.Key == "xmlns":
		return "", true
	case a.Space == "xmlns":
		return a.Key, true
	}
	return "", false
}

// Marshal serializes the envelope to XML bytes. The output is not indented
// so the payload is carried byte for byte.
func (e *Envelope) Marshal(ns Namespaces) ([]byte, error) {
	doc, err := e.Document(ns)
	if err != nil {
		return nil, err
	}
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return data, nil
}

// PayloadBytes serializes a payload element on its own, declaring the
// namespaces it inherits from its ancestors.
func PayloadBytes(el *etree.Element) ([]byte, error) {
	if el == nil {
		return nil, fmt.Errorf("%w: no payload", ErrSerialization)
	}
	doc := etree.NewDocument()
	doc.SetRoot(payloadCopy(el, false))
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return data, nil
}

// Parse parses XML bytes into an Envelope. The SBDH namespace may be bound
// with or without a prefix.
func Parse(data []byte) (*Envelope, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse SBDH: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument extracts an Envelope from an already parsed document.
func FromDocument(doc *etree.Document) (*Envelope, error) {
	root := doc.Root()
	if root == nil || root.Tag != "StandardBusinessDocument" || root.NamespaceURI() != Namespace {
		return nil, fmt.Errorf("%w: root element is not a StandardBusinessDocument", ErrInvalidEnvelope)
	}

	header := root.SelectElement("StandardBusinessDocumentHeader")
	if header == nil {
		return nil, fmt.Errorf("%w: missing StandardBusinessDocumentHeader", ErrInvalidEnvelope)
	}

	env := &Envelope{
		Sender:   partner(header, "Sender"),
		Receiver: partner(header, "Receiver"),
	}

	if docID := header.SelectElement("DocumentIdentification"); docID != nil {
		env.Standard = childText(docID, "Standard")
		env.TypeVersion = childText(docID, "TypeVersion")
		env.InstanceIdentifier = childText(docID, "InstanceIdentifier")
		env.Type = childText(docID, "Type")
		if ts := childText(docID, "CreationDateAndTime"); ts != "" {
			t, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return nil, fmt.Errorf("%w: bad CreationDateAndTime %q", ErrInvalidEnvelope, ts)
			}
			env.CreationTime = t
		}
	}

	if scopes := header.SelectElement("BusinessScope"); scopes != nil {
		for _, s := range scopes.SelectElements("Scope") {
			id := identifier.New(childText(s, "Identifier"), childText(s, "InstanceIdentifier"))
			switch childText(s, "Type") {
			case ScopeDocumentID:
				env.DocumentType = id
			case ScopeProcessID:
				env.Process = id
			}
		}
	}

	for _, child := range root.ChildElements() {
		if child != header {
			env.Payload = child
			break
		}
	}
	if env.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidEnvelope)
	}

	return env, nil
}

func partner(header *etree.Element, name string) identifier.ID {
	el := header.SelectElement(name)
	if el == nil {
		return identifier.ID{}
	}
	ident := el.SelectElement("Identifier")
	if ident == nil {
		return identifier.ID{}
	}
	return identifier.New(ident.SelectAttrValue("Authority", ""), ident.Text())
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return c.Text()
	}
	return ""
}
