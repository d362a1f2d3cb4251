package as2client

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-peppol-as2/pkg/resource"
	"github.com/sirosfoundation/go-peppol-as2/pkg/sbdh"
)

// documentRoot returns the root element of the business document
func documentRoot(p *Params) (*etree.Element, error) {
	if p.DocumentElement != nil {
		return p.DocumentElement, nil
	}

	data, err := resource.ReadAll(p.Document)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentRead, err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %s is not XML: %w", ErrDocumentRead, p.Document.Name(), err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: %s has no root element", ErrDocumentRead, p.Document.Name())
	}
	return root, nil
}

// assembleEnvelope wraps the document in an SBDH and serializes it
func (b *Builder) assembleEnvelope(p *Params, root *etree.Element) ([]byte, error) {
	env, err := sbdh.NewBuilder().
		WithSender(p.SenderID).
		WithReceiver(p.ReceiverID).
		WithDocumentType(p.DocumentTypeID).
		WithProcess(p.ProcessID).
		WithCreationTime(b.now().UTC()).
		WithPayload(root).
		Build()
	if err != nil {
		return nil, err
	}

	data, err := env.Marshal(b.namespaces)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("SBDH envelope assembled", "instance_id", env.InstanceIdentifier, "size", len(data))
	return data, nil
}
