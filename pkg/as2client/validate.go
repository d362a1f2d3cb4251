package as2client

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-peppol-as2/pkg/validation"
)

// validationRegistry builds the rule set registry on first use
func (b *Builder) validationRegistry() (validation.Registry, error) {
	if b.registry != nil {
		return b.registry, nil
	}
	registry, err := b.registryFactory()
	if err != nil {
		return nil, fmt.Errorf("building validation registry: %w", err)
	}
	b.registry = registry
	return registry, nil
}

// validateDocument runs the configured rule set against the document root
// and hands the results to the ValidationResultHandler
func (b *Builder) validateDocument(p *Params, root *etree.Element) error {
	if p.ValidationRuleSetID == "" {
		return nil
	}

	registry, err := b.validationRegistry()
	if err != nil {
		return err
	}
	executor := registry.Resolve(p.ValidationRuleSetID)
	if executor == nil {
		return fmt.Errorf("%w: %q", validation.ErrUnknownRuleSet, p.ValidationRuleSetID)
	}

	results := executor.Execute(root)
	b.logger.Info("business document validated",
		"rule_set", p.ValidationRuleSetID,
		"outcome", results.Outcome().String(),
		"errors", results.ErrorCount(),
		"warnings", results.WarningCount())

	if results.ErrorCount() == 0 {
		return b.resultHandler.OnSuccess(p.ValidationRuleSetID, results)
	}
	if err := b.resultHandler.OnFailure(p.ValidationRuleSetID, results); err != nil {
		return err
	}
	b.logger.Warn("continuing despite validation errors",
		"rule_set", p.ValidationRuleSetID,
		"errors", results.ErrorCount())
	return nil
}
