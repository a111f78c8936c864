package rules

import (
	"dossier/api/internal/align"
	"dossier/api/internal/bundle"
)

// Alignments holds the output of every entity mapper for one run.
type Alignments struct {
	Objectives []align.ObjectiveLink // brochure ↔ protocol
	Endpoints  []align.EndpointLink  // protocol ↔ SAP (↔ report)
	Doses      []align.DoseLink      // brochure ↔ protocol arms
}

// Context is the shared, read-only input every rule receives. It is built
// fresh per validation run; rules must not mutate it.
type Context struct {
	Bundle     *bundle.Bundle
	Alignments Alignments
}

// BuildContext runs each mapper exactly once over whichever documents are
// present and packages the result. Mappers whose document pair is absent
// leave their alignment slice empty.
func BuildContext(b *bundle.Bundle) *Context {
	ctx := &Context{Bundle: b}
	if b == nil {
		ctx.Bundle = &bundle.Bundle{}
		return ctx
	}
	if b.Brochure != nil && b.Protocol != nil {
		ctx.Alignments.Objectives = align.MapObjectives(b.Brochure.Objectives, b.Protocol.Objectives)
		ctx.Alignments.Doses = align.MapDoses(b.Brochure.Doses, b.Protocol.Arms)
	}
	if b.Protocol != nil && b.SAP != nil {
		var reported []bundle.Endpoint
		if b.Report != nil {
			reported = b.Report.Endpoints
		}
		ctx.Alignments.Endpoints = align.MapEndpoints(b.Protocol.Endpoints, b.SAP.Endpoints, reported)
	}
	return ctx
}
