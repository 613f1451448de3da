package validator

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/template/internal/content"
	"github.com/emrgen/template/internal/injectable"
	"github.com/emrgen/template/internal/model"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Validator checks template documents before they are saved or published.
// It holds no per-call state and is safe for concurrent use.
type Validator struct {
	lister injectable.Lister
	opts   Options
}

func New(lister injectable.Lister, opts Options) *Validator {
	return &Validator{
		lister: lister,
		opts:   opts.withDefaults(),
	}
}

// ValidateForDraft accepts an empty payload and otherwise only checks that
// the payload decodes into a document.
func (v *Validator) ValidateForDraft(raw []byte) *Result {
	res := newResult()
	if content.IsEmpty(raw) {
		return res.finish()
	}

	if _, err := content.Parse(raw); err != nil {
		res.addError(CodeInvalidJSON, "", fmt.Sprintf("content is not a valid document: %v", err))
	}

	return res.finish()
}

// ValidateForPublish runs every check and, when no error was found, extracts
// the injectables the document uses. The returned error is reserved for
// infrastructure failures of the injectable lookup.
func (v *Validator) ValidateForPublish(ctx context.Context, workspaceID, revisionID uuid.UUID, raw []byte) (*Result, error) {
	res := newResult()
	if content.IsEmpty(raw) {
		res.addError(CodeEmptyContent, "content", "content is required to publish")
		return res.finish(), nil
	}

	doc, err := content.Parse(raw)
	if err != nil {
		res.addError(CodeInvalidJSON, "", fmt.Sprintf("content is not a valid document: %v", err))
		return res.finish(), nil
	}

	if err := ctx.Err(); err != nil {
		return cancelled(err), nil
	}
	v.checkStructure(doc, res)

	if err := ctx.Err(); err != nil {
		return cancelled(err), nil
	}
	accessible, err := v.lister.List(ctx, workspaceID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(ctxErr), nil
		}
		return nil, fmt.Errorf("list accessible injectables: %w", err)
	}
	index := injectable.Index(accessible)
	declared := declaredIDs(doc)
	checkAccessible(declared, index, res)

	if err := ctx.Err(); err != nil {
		return cancelled(err), nil
	}
	checkInjectors(doc, res)

	if err := ctx.Err(); err != nil {
		return cancelled(err), nil
	}
	newLogicChecker(doc, v.opts.MaxDepth, res).run()

	if err := ctx.Err(); err != nil {
		return cancelled(err), nil
	}
	if len(res.Errors) == 0 {
		res.ExtractedInjectables = extract(revisionID, declared, index)
	}

	return res.finish(), nil
}

func (v *Validator) checkStructure(doc *content.Document, res *Result) {
	check := func(path, code string, value any, rules ...validation.Rule) {
		if err := validation.Validate(value, rules...); err != nil {
			res.addError(code, path, err.Error())
		}
	}

	check("version", CodeInvalidVersion, doc.Version,
		validation.Required,
		validation.By(func(value any) error {
			if _, err := semver.StrictNewVersion(value.(string)); err != nil {
				return fmt.Errorf("must be a semantic version x.y.z")
			}
			return nil
		}),
	)
	check("meta.title", CodeMissingTitle, doc.Meta.Title, validation.Required)
	check("meta.language", CodeInvalidLanguage, doc.Meta.Language,
		validation.Required,
		validation.In(toAny(v.opts.Languages)...).Error(fmt.Sprintf("must be one of %v", v.opts.Languages)),
	)
	check("pageConfig.formatId", CodeInvalidPageFormat, doc.PageConfig.FormatID,
		validation.Required,
		validation.In(toAny(v.opts.PageFormats)...).Error(fmt.Sprintf("must be one of %v", v.opts.PageFormats)),
	)

	margins := doc.PageConfig.Margins
	for _, side := range []struct {
		name  string
		value float64
	}{
		{"top", margins.Top},
		{"bottom", margins.Bottom},
		{"left", margins.Left},
		{"right", margins.Right},
	} {
		check("pageConfig.margins."+side.name, CodeNegativeMargin, side.value, validation.Min(0.0))
	}
}

type declaredID struct {
	id    string
	index int
}

// declaredIDs returns the distinct declared ids in declaration order.
func declaredIDs(doc *content.Document) []declaredID {
	seen := mapset.NewThreadUnsafeSet[string]()
	ids := make([]declaredID, 0, len(doc.VariableIDs))
	for i, id := range doc.VariableIDs {
		if !seen.Add(id) {
			continue
		}
		ids = append(ids, declaredID{id: id, index: i})
	}

	return ids
}

func checkAccessible(declared []declaredID, index map[string]injectable.Accessible, res *Result) {
	for _, d := range declared {
		if _, ok := index[d.id]; !ok {
			res.addError(CodeInaccessibleVariable, fmt.Sprintf("variableIds[%d]", d.index),
				fmt.Sprintf("variable %q is not accessible from this workspace", d.id))
		}
	}
}

func checkInjectors(doc *content.Document, res *Result) {
	declared := doc.Declared()
	ordinal := 0
	content.Walk(&doc.Content, func(node content.Node) {
		content.MatchNode(node,
			func(n *content.InjectorNode) {
				if _, ok := declared[n.Attrs.VariableID]; !ok {
					res.addError(CodeUndeclaredVariable,
						fmt.Sprintf("content.injector[%d].attrs.variableId", ordinal),
						fmt.Sprintf("variable %q is not declared in variableIds", n.Attrs.VariableID))
				}
				ordinal++
			},
			func(*content.ConditionalNode) {},
			func(*content.ContentNode) {},
		)
	})
}

func extract(revisionID uuid.UUID, declared []declaredID, index map[string]injectable.Accessible) []*model.RevisionInjectable {
	seen := mapset.NewThreadUnsafeSet[string]()
	extracted := make([]*model.RevisionInjectable, 0, len(declared))
	for _, d := range declared {
		accessible, ok := index[d.id]
		if !ok {
			continue
		}

		ri := &model.RevisionInjectable{RevisionID: revisionID.String()}
		if accessible.IsGlobal {
			key := accessible.Key
			ri.SystemInjectableKey = &key
		} else {
			id := accessible.ID
			ri.WorkspaceInjectableID = &id
		}
		if !seen.Add(ri.Key()) {
			continue
		}
		extracted = append(extracted, ri)
	}

	return extracted
}
